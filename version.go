package contracts

// Version constants for the contract layer.
const (
	// ContractsVersion is the version of the data-contract layer itself.
	// It only moves when a wire format or digest recipe changes meaning.
	ContractsVersion = "1.0.0"

	// EncodingVersion is the canonical parameter encoding version. It is
	// baked into hash domain strings, so bumping it re-keys every digest.
	EncodingVersion = "1"
)
