package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRecipient(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid lowercase address",
			address: "0x742d35cc6634c0532925a3b844bc454e4438f44e",
			wantErr: false,
		},
		{
			name:    "valid mixed case address",
			address: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
			wantErr: false,
		},
		{
			name:    "empty address",
			address: "",
			wantErr: true,
			errMsg:  "address cannot be empty",
		},
		{
			name:    "missing 0x prefix",
			address: "742d35cc6634c0532925a3b844bc454e4438f44e",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "too short address",
			address: "0x742d35cc6634c0532925a3b844bc454e4438f4",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "invalid characters",
			address: "0x742d35cc6634c0532925a3b844bc454e4438fXYZ",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "zero address",
			address: "0x0000000000000000000000000000000000000000",
			wantErr: true,
			errMsg:  "cannot send to zero address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipient(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateChainID(t *testing.T) {
	assert.NoError(t, ValidateChainID(1))
	assert.NoError(t, ValidateChainID(999999))
	assert.Error(t, ValidateChainID(0))
	assert.Error(t, ValidateChainID(-5))
}

func TestChainName(t *testing.T) {
	assert.Equal(t, "Polygon", ChainName(137))
	assert.Equal(t, "chain 31337", ChainName(31337))
}
