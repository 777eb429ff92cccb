package midi

import (
	"github.com/leandrodaf/midimcp/sdk/contracts"
)

// NewOutputClient creates a new MIDI output client with the specified options.
// It applies default options and initializes the backend.
//
// opts ...contracts.Option: A variadic list of option functions to customize the client configuration.
//
// Returns:
//   - contracts.OutputClient: An instance of the MIDI output client.
//   - error: An error, if any occurred during the creation of the client. Callers
//     that want to keep running without MIDI treat this as "unavailable".
func NewOutputClient(opts ...contracts.Option) (contracts.OutputClient, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(&options)
	if err != nil {
		return nil, err
	}

	return client, nil
}
