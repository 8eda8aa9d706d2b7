package nns

// NameAuthenticity is the conventional domain of the content authenticity
// contract.
const NameAuthenticity = "authenticity.neofs"

// TXT is the record type holding contract hashes.
const TXT = 16
