package chains

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindTables(t *testing.T) {
	tests := []struct {
		kind   Kind
		width  int
		scheme SignatureScheme
		name   string
	}{
		{Evm, 20, SchemeEcdsaPersonal, "evm"},
		{MoveVm, 32, SchemeEd25519, "mvm"},
		{SolanaVm, 32, SchemeEd25519, "svm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.kind.Valid())
			assert.Equal(t, tt.width, tt.kind.AddressWidth())
			assert.Equal(t, tt.scheme, tt.kind.Scheme())
			assert.Equal(t, tt.name, tt.kind.String())
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Solana ")
	require.NoError(t, err)
	assert.Equal(t, SolanaVm, k)

	k, err = ParseKind("MVM")
	require.NoError(t, err)
	assert.Equal(t, MoveVm, k)

	_, err = ParseKind("cosmos")
	assert.Error(t, err)
}

func TestKindJSON(t *testing.T) {
	type wrapper struct {
		Kind Kind `json:"kind"`
	}

	data, err := json.Marshal(wrapper{Kind: Evm})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"evm"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"svm"}`), &w))
	assert.Equal(t, SolanaVm, w.Kind)

	_, err = json.Marshal(wrapper{})
	assert.Error(t, err)
}

func TestGetChainName(t *testing.T) {
	assert.Equal(t, "BASE_SEPOLIA", GetChainName(84532))
	assert.Equal(t, "", GetChainName(999999))
}
