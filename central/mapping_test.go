package central

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
)

const sampleBlockJSON = `{
	"block_hash": "0x1a",
	"parent_block_hash": "0x0",
	"block_number": 5,
	"timestamp": 100,
	"sequencer_address": "0x2b",
	"state_root": "0x3c",
	"transaction_commitment": "0x4d",
	"event_commitment": "0x5e",
	"starknet_version": "0.13.1",
	"l1_da_mode": "BLOB",
	"l1_gas_price": {"price_in_wei": "0x10", "price_in_fri": "0x20"},
	"l1_data_gas_price": {"price_in_wei": "0x1", "price_in_fri": "0x2"},
	"transactions": [
		{
			"type": "INVOKE_FUNCTION",
			"version": "0x1",
			"transaction_hash": "0x99",
			"sender_address": "0xaa",
			"max_fee": "0x0",
			"nonce": "0x3",
			"calldata": ["0x1", "0x2"]
		}
	],
	"transaction_receipts": [
		{
			"transaction_hash": "0x99",
			"actual_fee": "0x5",
			"execution_status": "SUCCEEDED",
			"events": [
				{"from_address": "0xaa", "keys": ["0x1"], "data": ["0x2"]}
			],
			"l2_to_l1_messages": [],
			"execution_resources": {"n_steps": 10, "n_memory_holes": 0, "builtin_instance_counter": {}}
		}
	]
}`

func TestMapBlockDecodesHeaderAndBody(t *testing.T) {
	item, err := mapBlock([]byte(sampleBlockJSON))
	require.NoError(t, err)

	assert.Equal(t, common.BlockNumber(5), item.Number)
	assert.Equal(t, common.L1DABlob, item.Header.L1DAMode)
	assert.Equal(t, "0.13.1", item.Header.ProtocolVersion)
	assert.EqualValues(t, 1, item.Header.NTransactions)
	assert.EqualValues(t, 1, item.Header.NEvents)

	require.Len(t, item.Transactions, 1)
	require.Len(t, item.Outputs, 1)
	assert.Equal(t, types.Succeeded, item.Outputs[0].Status)
	require.Len(t, item.Outputs[0].Events, 1)
}

func TestMapBlockRejectsMalformedJSON(t *testing.T) {
	_, err := mapBlock([]byte("not json"))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestMapBlockRejectsBadFeltHex(t *testing.T) {
	bad := `{"block_hash": "not-hex", "block_number": 0}`
	_, err := mapBlock([]byte(bad))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

const sampleStateUpdateJSON = `{
	"state_diff": {
		"storage_diffs": {
			"0xaa": [{"key": "0x1", "value": "0x2"}]
		},
		"deployed_contracts": [{"address": "0xbb", "class_hash": "0xcc"}],
		"declared_classes": [{"class_hash": "0xdd", "compiled_class_hash": "0xee"}],
		"old_declared_contracts": ["0xff"],
		"nonces": [{"contract_address": "0xaa", "nonce": "0x7"}],
		"replaced_classes": [{"address": "0xbb", "class_hash": "0x11"}]
	}
}`

func TestMapStateUpdateCollectsDeclaredClasses(t *testing.T) {
	diff, declared, err := mapStateUpdate([]byte(sampleStateUpdateJSON))
	require.NoError(t, err)

	require.Len(t, declared, 2)
	assert.Len(t, diff.DeployedContracts, 1)
	assert.Len(t, diff.DeclaredClasses, 1)
	assert.Len(t, diff.DeprecatedDeclaredClasses, 1)
	assert.Len(t, diff.Nonces, 1)
	assert.Len(t, diff.ReplacedClasses, 1)
	assert.Len(t, diff.StorageUpdates, 1)
}
