package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// SetSerialized serializes data and puts it into contract storage.
func SetSerialized(ctx storage.Context, key any, value any) {
	data := std.Serialize(value)
	storage.Put(ctx, key, data)
}

// GetSerialized returns deserialized value stored by key or nil.
func GetSerialized(ctx storage.Context, key any) any {
	data := storage.Get(ctx, key)
	if data == nil {
		return nil
	}

	return std.Deserialize(data.([]byte))
}

// GetInt returns integer stored by key, missing values are 0.
func GetInt(ctx storage.Context, key any) int {
	v := storage.Get(ctx, key)
	if v == nil {
		return 0
	}

	return v.(int)
}
