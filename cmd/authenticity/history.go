package main

import (
	"context"
	"errors"

	"github.com/nspcc-dev/neofs-authenticity/pipeline"
	"github.com/nspcc-dev/neofs-authenticity/receipts"
)

func runHistory(ctx context.Context, env *cmdEnv, args []string) error {
	path := env.cfg.Journal.Path
	if path == "" {
		return errors.New("missing required configuration: journal.path")
	}

	j, err := receipts.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	var res []pipeline.Receipt

	if len(args) == 0 {
		res, err = j.List(ctx, env.limit)
	} else {
		fp, perr := parseContentRef(args[0])
		if perr != nil {
			return perr
		}
		res, err = j.ByFingerprint(ctx, fp)
	}
	if err != nil {
		return err
	}

	if res == nil {
		res = []pipeline.Receipt{}
	}

	return env.print(res)
}
