package types

import "github.com/starkcore/node/corelib/common"

// TxKind tags the Transaction union, mirroring the `type`+`version` fields
// the central-source HTTP API uses to discriminate.
type TxKind uint8

const (
	TxDeclare TxKind = iota
	TxDeploy
	TxDeployAccount
	TxInvoke
	TxL1Handler
)

// ResourceBounds is the v3 fee-market resource limit, one per resource
// (L1_GAS, L2_GAS).
type ResourceBounds struct {
	MaxAmount uint64
	MaxPricePerUnit common.Fee
}

// DeclareFields covers Declare v0..v3. Not every field is populated by
// every version; version-specific zero values are not errors.
type DeclareFields struct {
	Version uint8
	SenderAddress common.Address
	ClassHash common.ClassHash
	CompiledClassHash common.CompiledClassHash // v2+
	MaxFee common.Fee // v0..v2
	Nonce common.Nonce
	Signature []common.FieldElement
	ResourceBounds map[string]ResourceBounds // v3
	Tip common.Fee // v3
	PaymasterData []common.FieldElement // v3
}

// DeployFields covers the (deprecated, genesis-only) Deploy transaction.
type DeployFields struct {
	ClassHash common.ClassHash
	ContractAddressSalt common.FieldElement
	ConstructorCalldata []common.FieldElement
	Version uint8
}

// DeployAccountFields covers DeployAccount v1/v3.
type DeployAccountFields struct {
	Version uint8
	ClassHash common.ClassHash
	ContractAddressSalt common.FieldElement
	ConstructorCalldata []common.FieldElement
	MaxFee common.Fee
	Nonce common.Nonce
	Signature []common.FieldElement
	ResourceBounds map[string]ResourceBounds
	Tip common.Fee
	PaymasterData []common.FieldElement
}

// InvokeFields covers Invoke v0..v3.
type InvokeFields struct {
	Version uint8
	SenderAddress common.Address // v1+
	ContractAddress common.Address // v0 only
	EntryPointSelector common.EntryPointSelector
	Calldata []common.FieldElement
	MaxFee common.Fee
	Nonce common.Nonce
	Signature []common.FieldElement
	ResourceBounds map[string]ResourceBounds
	Tip common.Fee
	PaymasterData []common.FieldElement
	AccountDeploymentData []common.FieldElement
}

// L1HandlerFields covers the L1-originated handler transaction.
type L1HandlerFields struct {
	Version uint8
	ContractAddress common.Address
	EntryPointSelector common.EntryPointSelector
	Calldata []common.FieldElement
	Nonce common.Nonce
}

// Transaction is the tagged union over every transaction kind. Exactly
// one of the *Fields pointers, the one matching Kind, is non-nil.
type Transaction struct {
	Hash common.TransactionHash
	Kind TxKind
	Declare *DeclareFields
	Deploy *DeployFields
	DeployAccount *DeployAccountFields
	Invoke *InvokeFields
	L1Handler *L1HandlerFields
}
