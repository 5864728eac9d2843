package central

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
)

// This file maps the feeder-gateway's JSON responses onto
// the domain types of core/types. Decode failures surface as
// ErrSchemaMismatch, the one Client:: error the retry loop never retries.

func parseFeltHex(s string) (common.FieldElement, error) {
	if s == "" {
		return common.FeltZero, nil
	}
	i, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return common.FieldElement{}, fmt.Errorf("central: %w: invalid felt %q", ErrSchemaMismatch, s)
	}
	var b [common.FeltBytes]byte
	i.FillBytes(b[:])
	return common.FeltFromBytes(b[:])
}

type rawResourceBounds struct {
	MaxAmount string `json:"max_amount"`
	MaxPricePerUnit string `json:"max_price_per_unit"`
}

type rawTx struct {
	Type string `json:"type"`
	Version string `json:"version"`
	TransactionHash string `json:"transaction_hash"`
	SenderAddress string `json:"sender_address"`
	ContractAddress string `json:"contract_address"`
	ClassHash string `json:"class_hash"`
	CompiledClassHash string `json:"compiled_class_hash"`
	MaxFee string `json:"max_fee"`
	Nonce string `json:"nonce"`
	Signature []string `json:"signature"`
	ContractAddressSalt string `json:"contract_address_salt"`
	ConstructorCalldata []string `json:"constructor_calldata"`
	Calldata []string `json:"calldata"`
	EntryPointSelector string `json:"entry_point_selector"`
	ResourceBounds map[string]rawResourceBounds `json:"resource_bounds"`
	Tip string `json:"tip"`
	PaymasterData []string `json:"paymaster_data"`
	AccountDeploymentData []string `json:"account_deployment_data"`
}

type rawEvent struct {
	FromAddress string `json:"from_address"`
	Keys []string `json:"keys"`
	Data []string `json:"data"`
}

type rawL2ToL1Message struct {
	ToAddress string `json:"to_address"`
	Payload []string `json:"payload"`
}

type rawExecutionResources struct {
	NSteps uint64 `json:"n_steps"`
	NMemoryHoles uint64 `json:"n_memory_holes"`
	BuiltinInstanceCounter map[string]uint64 `json:"builtin_instance_counter"`
	L1GasUsage uint64 `json:"l1_gas_usage"`
	L1DataGasUsage uint64 `json:"l1_data_gas_usage"`
}

type rawReceipt struct {
	TransactionHash string `json:"transaction_hash"`
	ActualFee string `json:"actual_fee"`
	ExecutionStatus string `json:"execution_status"`
	RevertError string `json:"revert_error"`
	Events []rawEvent `json:"events"`
	L2ToL1Messages []rawL2ToL1Message `json:"l2_to_l1_messages"`
	ExecutionResources rawExecutionResources `json:"execution_resources"`
}

type rawGasPrice struct {
	PriceInWei string `json:"price_in_wei"`
	PriceInFri string `json:"price_in_fri"`
}

type rawBlock struct {
	BlockHash string `json:"block_hash"`
	ParentBlockHash string `json:"parent_block_hash"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp uint64 `json:"timestamp"`
	SequencerAddress string `json:"sequencer_address"`
	StateRoot string `json:"state_root"`
	TransactionCommitment string `json:"transaction_commitment"`
	EventCommitment string `json:"event_commitment"`
	StarknetVersion string `json:"starknet_version"`
	L1DAMode string `json:"l1_da_mode"`
	L1GasPrice rawGasPrice `json:"l1_gas_price"`
	L1DataGasPrice rawGasPrice `json:"l1_data_gas_price"`
	Transactions []rawTx `json:"transactions"`
	TransactionReceipts []rawReceipt `json:"transaction_receipts"`
}

func mapBlock(body []byte) (*HeaderItem, error) {
	var raw rawBlock
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("central: %w: %v", ErrSchemaMismatch, err)
	}

	hdr, err := mapHeader(&raw)
	if err != nil {
		return nil, err
	}

	txs := make([]*types.Transaction, len(raw.Transactions))
	outs := make([]*types.TransactionOutput, len(raw.TransactionReceipts))
	for i := range raw.Transactions {
		t, err := mapTransaction(&raw.Transactions[i])
		if err != nil {
			return nil, err
		}
		txs[i] = t
	}
	for i := range raw.TransactionReceipts {
		o, err := mapOutput(&raw.TransactionReceipts[i])
		if err != nil {
			return nil, err
		}
		outs[i] = o
	}
	hdr.NTransactions = uint32(len(txs))
	var nEvents uint32
	for _, o := range outs {
		nEvents += uint32(len(o.Events))
	}
	hdr.NEvents = nEvents

	return &HeaderItem{
		Number: hdr.BlockNumber,
		Header: hdr,
		Transactions: txs,
		Outputs: outs,
	}, nil
}

func mapHeader(raw *rawBlock) (*types.BlockHeader, error) {
	blockHash, err := parseFeltHex(raw.BlockHash)
	if err != nil {
		return nil, err
	}
	parentHash, err := parseFeltHex(raw.ParentBlockHash)
	if err != nil {
		return nil, err
	}
	sequencer, err := parseFeltHex(raw.SequencerAddress)
	if err != nil {
		return nil, err
	}
	stateRoot, err := parseFeltHex(raw.StateRoot)
	if err != nil {
		return nil, err
	}
	txCommitment, err := parseFeltHex(raw.TransactionCommitment)
	if err != nil {
		return nil, err
	}
	evCommitment, err := parseFeltHex(raw.EventCommitment)
	if err != nil {
		return nil, err
	}
	l1GasWei, err := parseGasPrice(raw.L1GasPrice.PriceInWei)
	if err != nil {
		return nil, err
	}
	l1GasFri, err := parseGasPrice(raw.L1GasPrice.PriceInFri)
	if err != nil {
		return nil, err
	}
	l1DataWei, err := parseGasPrice(raw.L1DataGasPrice.PriceInWei)
	if err != nil {
		return nil, err
	}
	l1DataFri, err := parseGasPrice(raw.L1DataGasPrice.PriceInFri)
	if err != nil {
		return nil, err
	}

	mode := common.L1DACalldata
	if raw.L1DAMode == "BLOB" {
		mode = common.L1DABlob
	}

	return &types.BlockHeader{
		BlockHash: common.Hash(blockHash),
		ParentHash: common.Hash(parentHash),
		BlockNumber: common.BlockNumber(raw.BlockNumber),
		Timestamp: raw.Timestamp,
		SequencerAddress: common.Address(sequencer),
		StateRoot: stateRoot,
		TransactionCommitment: txCommitment,
		EventCommitment: evCommitment,
		L1GasPrice: common.GasPricePair{Wei: l1GasWei, Fri: l1GasFri},
		L1DataGasPrice: common.GasPricePair{Wei: l1DataWei, Fri: l1DataFri},
		L1DAMode: mode,
		ProtocolVersion: raw.StarknetVersion,
	}, nil
}

func parseGasPrice(s string) (common.GasPrice, error) {
	if s == "" {
		return common.GasPriceFromUint64(0), nil
	}
	i, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return common.GasPrice{}, fmt.Errorf("central: %w: invalid gas price %q", ErrSchemaMismatch, s)
	}
	var b [16]byte
	i.FillBytes(b[:])
	return common.GasPriceFromBytes16(b[:]), nil
}

func parseFee(s string) (common.Fee, error) {
	if s == "" {
		return common.FeeFromUint64(0), nil
	}
	i, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return common.Fee{}, fmt.Errorf("central: %w: invalid fee %q", ErrSchemaMismatch, s)
	}
	var b [16]byte
	i.FillBytes(b[:])
	return common.FeeFromBytes16(b[:]), nil
}

func mapFeltSlice(ss []string) ([]common.FieldElement, error) {
	out := make([]common.FieldElement, len(ss))
	for i, s := range ss {
		f, err := parseFeltHex(s)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func mapResourceBounds(raw map[string]rawResourceBounds) (map[string]types.ResourceBounds, error) {
	out := make(map[string]types.ResourceBounds, len(raw))
	for k, v := range raw {
		amount, err := strconv.ParseUint(trimHexPrefix(v.MaxAmount), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("central: %w: invalid resource amount %q", ErrSchemaMismatch, v.MaxAmount)
		}
		price, err := parseFee(v.MaxPricePerUnit)
		if err != nil {
			return nil, err
		}
		out[k] = types.ResourceBounds{MaxAmount: amount, MaxPricePerUnit: price}
	}
	return out, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func mapTransaction(raw *rawTx) (*types.Transaction, error) {
	hash, err := parseFeltHex(raw.TransactionHash)
	if err != nil {
		return nil, err
	}
	version := parseVersion(raw.Version)
	tx := &types.Transaction{Hash: common.TransactionHash(hash)}

	switch raw.Type {
	case "DECLARE":
		tx.Kind = types.TxDeclare
		d := &types.DeclareFields{Version: version}
		if d.SenderAddress, err = parseAddress(raw.SenderAddress); err != nil {
			return nil, err
		}
		if d.ClassHash, err = parseClassHash(raw.ClassHash); err != nil {
			return nil, err
		}
		if d.CompiledClassHash, err = parseCompiledClassHash(raw.CompiledClassHash); err != nil {
			return nil, err
		}
		if d.MaxFee, err = parseFee(raw.MaxFee); err != nil {
			return nil, err
		}
		if d.Nonce, err = parseNonce(raw.Nonce); err != nil {
			return nil, err
		}
		if d.Signature, err = mapFeltSlice(raw.Signature); err != nil {
			return nil, err
		}
		if d.ResourceBounds, err = mapResourceBounds(raw.ResourceBounds); err != nil {
			return nil, err
		}
		if d.Tip, err = parseFee(raw.Tip); err != nil {
			return nil, err
		}
		if d.PaymasterData, err = mapFeltSlice(raw.PaymasterData); err != nil {
			return nil, err
		}
		tx.Declare = d
	case "DEPLOY":
		tx.Kind = types.TxDeploy
		d := &types.DeployFields{Version: version}
		if d.ClassHash, err = parseClassHash(raw.ClassHash); err != nil {
			return nil, err
		}
		if d.ContractAddressSalt, err = parseFeltHex(raw.ContractAddressSalt); err != nil {
			return nil, err
		}
		if d.ConstructorCalldata, err = mapFeltSlice(raw.ConstructorCalldata); err != nil {
			return nil, err
		}
		tx.Deploy = d
	case "DEPLOY_ACCOUNT":
		tx.Kind = types.TxDeployAccount
		d := &types.DeployAccountFields{Version: version}
		if d.ClassHash, err = parseClassHash(raw.ClassHash); err != nil {
			return nil, err
		}
		if d.ContractAddressSalt, err = parseFeltHex(raw.ContractAddressSalt); err != nil {
			return nil, err
		}
		if d.ConstructorCalldata, err = mapFeltSlice(raw.ConstructorCalldata); err != nil {
			return nil, err
		}
		if d.MaxFee, err = parseFee(raw.MaxFee); err != nil {
			return nil, err
		}
		if d.Nonce, err = parseNonce(raw.Nonce); err != nil {
			return nil, err
		}
		if d.Signature, err = mapFeltSlice(raw.Signature); err != nil {
			return nil, err
		}
		if d.ResourceBounds, err = mapResourceBounds(raw.ResourceBounds); err != nil {
			return nil, err
		}
		if d.Tip, err = parseFee(raw.Tip); err != nil {
			return nil, err
		}
		if d.PaymasterData, err = mapFeltSlice(raw.PaymasterData); err != nil {
			return nil, err
		}
		tx.DeployAccount = d
	case "INVOKE_FUNCTION":
		tx.Kind = types.TxInvoke
		d := &types.InvokeFields{Version: version}
		if d.SenderAddress, err = parseAddress(raw.SenderAddress); err != nil {
			return nil, err
		}
		if d.ContractAddress, err = parseAddress(raw.ContractAddress); err != nil {
			return nil, err
		}
		if d.EntryPointSelector, err = parseEntryPointSelector(raw.EntryPointSelector); err != nil {
			return nil, err
		}
		if d.Calldata, err = mapFeltSlice(raw.Calldata); err != nil {
			return nil, err
		}
		if d.MaxFee, err = parseFee(raw.MaxFee); err != nil {
			return nil, err
		}
		if d.Nonce, err = parseNonce(raw.Nonce); err != nil {
			return nil, err
		}
		if d.Signature, err = mapFeltSlice(raw.Signature); err != nil {
			return nil, err
		}
		if d.ResourceBounds, err = mapResourceBounds(raw.ResourceBounds); err != nil {
			return nil, err
		}
		if d.Tip, err = parseFee(raw.Tip); err != nil {
			return nil, err
		}
		if d.PaymasterData, err = mapFeltSlice(raw.PaymasterData); err != nil {
			return nil, err
		}
		if d.AccountDeploymentData, err = mapFeltSlice(raw.AccountDeploymentData); err != nil {
			return nil, err
		}
		tx.Invoke = d
	case "L1_HANDLER":
		tx.Kind = types.TxL1Handler
		d := &types.L1HandlerFields{Version: version}
		if d.ContractAddress, err = parseAddress(raw.ContractAddress); err != nil {
			return nil, err
		}
		if d.EntryPointSelector, err = parseEntryPointSelector(raw.EntryPointSelector); err != nil {
			return nil, err
		}
		if d.Calldata, err = mapFeltSlice(raw.Calldata); err != nil {
			return nil, err
		}
		if d.Nonce, err = parseNonce(raw.Nonce); err != nil {
			return nil, err
		}
		tx.L1Handler = d
	default:
		return nil, fmt.Errorf("central: %w: unknown transaction type %q", ErrSchemaMismatch, raw.Type)
	}
	return tx, nil
}

func parseAddress(s string) (common.Address, error) {
	f, err := parseFeltHex(s)
	return common.Address(f), err
}

func parseClassHash(s string) (common.ClassHash, error) {
	f, err := parseFeltHex(s)
	return common.ClassHash(f), err
}

func parseCompiledClassHash(s string) (common.CompiledClassHash, error) {
	f, err := parseFeltHex(s)
	return common.CompiledClassHash(f), err
}

func parseNonce(s string) (common.Nonce, error) {
	f, err := parseFeltHex(s)
	return common.Nonce(f), err
}

func parseEntryPointSelector(s string) (common.EntryPointSelector, error) {
	f, err := parseFeltHex(s)
	return common.EntryPointSelector(f), err
}

func parseStorageKey(s string) (common.StorageKey, error) {
	f, err := parseFeltHex(s)
	return common.StorageKey(f), err
}

func parseVersion(s string) uint8 {
	i, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return 0
	}
	return uint8(i.Uint64())
}

func mapOutput(raw *rawReceipt) (*types.TransactionOutput, error) {
	status := types.Succeeded
	if raw.ExecutionStatus == "REVERTED" {
		status = types.Reverted
	}
	fee, err := parseFee(raw.ActualFee)
	if err != nil {
		return nil, err
	}
	events := make([]types.Event, len(raw.Events))
	for i, e := range raw.Events {
		from, err := parseAddress(e.FromAddress)
		if err != nil {
			return nil, err
		}
		keys, err := mapFeltSlice(e.Keys)
		if err != nil {
			return nil, err
		}
		data, err := mapFeltSlice(e.Data)
		if err != nil {
			return nil, err
		}
		events[i] = types.Event{FromAddress: from, Keys: keys, Data: data}
	}
	messages := make([]types.L2ToL1Message, len(raw.L2ToL1Messages))
	for i, m := range raw.L2ToL1Messages {
		payload, err := mapFeltSlice(m.Payload)
		if err != nil {
			return nil, err
		}
		var addr [20]byte
		if b, ok := new(big.Int).SetString(m.ToAddress, 0); ok {
			bs := b.Bytes()
			copy(addr[20-len(bs):], bs)
		}
		messages[i] = types.L2ToL1Message{ToAddress: addr, Payload: payload}
	}
	return &types.TransactionOutput{
		Status: status,
		RevertReason: raw.RevertError,
		ActualFee: fee,
		Events: events,
		Messages: messages,
		Resources: types.ExecutionResources{
			Steps: raw.ExecutionResources.NSteps,
			MemoryHoles: raw.ExecutionResources.NMemoryHoles,
			Builtins: types.BuiltinCounters{
				Pedersen: raw.ExecutionResources.BuiltinInstanceCounter["pedersen_builtin"],
				RangeCheck: raw.ExecutionResources.BuiltinInstanceCounter["range_check_builtin"],
				Bitwise: raw.ExecutionResources.BuiltinInstanceCounter["bitwise_builtin"],
				EcOp: raw.ExecutionResources.BuiltinInstanceCounter["ec_op_builtin"],
				Poseidon: raw.ExecutionResources.BuiltinInstanceCounter["poseidon_builtin"],
				Keccak: raw.ExecutionResources.BuiltinInstanceCounter["keccak_builtin"],
				SegmentArena: raw.ExecutionResources.BuiltinInstanceCounter["segment_arena_builtin"],
			},
			L1GasUsed: raw.ExecutionResources.L1GasUsage,
			L1DataGasUsed: raw.ExecutionResources.L1DataGasUsage,
		},
	}, nil
}

type rawStorageDiff struct {
	Key string `json:"key"`
	Value string `json:"value"`
}

type rawDeployedContract struct {
	Address string `json:"address"`
	ClassHash string `json:"class_hash"`
}

type rawReplacedClass struct {
	Address string `json:"address"`
	ClassHash string `json:"class_hash"`
}

type rawNonce struct {
	ContractAddress string `json:"contract_address"`
	Nonce string `json:"nonce"`
}

type rawStateDiff struct {
	StorageDiffs map[string][]rawStorageDiff `json:"storage_diffs"`
	DeployedContracts []rawDeployedContract `json:"deployed_contracts"`
	DeclaredClasses []map[string]string `json:"declared_classes"`
	OldDeclaredContracts []string `json:"old_declared_contracts"`
	Nonces []rawNonce `json:"nonces"`
	ReplacedClasses []rawReplacedClass `json:"replaced_classes"`
}

type rawStateUpdate struct {
	StateDiff rawStateDiff `json:"state_diff"`
}

func mapStateUpdate(body []byte) (*types.StateDiff, []common.ClassHash, error) {
	var raw rawStateUpdate
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("central: %w: %v", ErrSchemaMismatch, err)
	}
	d := types.NewStateDiff()

	var declared []common.ClassHash
	for addrHex, diffs := range raw.StateDiff.StorageDiffs {
		addr, err := parseAddress(addrHex)
		if err != nil {
			return nil, nil, err
		}
		upd := make(map[common.StorageKey]common.FieldElement, len(diffs))
		for _, sd := range diffs {
			key, err := parseStorageKey(sd.Key)
			if err != nil {
				return nil, nil, err
			}
			val, err := parseFeltHex(sd.Value)
			if err != nil {
				return nil, nil, err
			}
			upd[key] = val
		}
		d.StorageUpdates[addr] = upd
	}

	for _, dc := range raw.StateDiff.DeployedContracts {
		addr, err := parseAddress(dc.Address)
		if err != nil {
			return nil, nil, err
		}
		ch, err := parseClassHash(dc.ClassHash)
		if err != nil {
			return nil, nil, err
		}
		d.DeployedContracts[addr] = ch
	}

	for _, entry := range raw.StateDiff.DeclaredClasses {
		ch, err := parseClassHash(entry["class_hash"])
		if err != nil {
			return nil, nil, err
		}
		cch, err := parseCompiledClassHash(entry["compiled_class_hash"])
		if err != nil {
			return nil, nil, err
		}
		d.DeclaredClasses[ch] = cch
		declared = append(declared, ch)
	}

	for _, chHex := range raw.StateDiff.OldDeclaredContracts {
		ch, err := parseClassHash(chHex)
		if err != nil {
			return nil, nil, err
		}
		d.DeprecatedDeclaredClasses[ch] = struct{}{}
		declared = append(declared, ch)
	}

	for _, n := range raw.StateDiff.Nonces {
		addr, err := parseAddress(n.ContractAddress)
		if err != nil {
			return nil, nil, err
		}
		nonce, err := parseNonce(n.Nonce)
		if err != nil {
			return nil, nil, err
		}
		d.Nonces[addr] = nonce
	}

	for _, rc := range raw.StateDiff.ReplacedClasses {
		addr, err := parseAddress(rc.Address)
		if err != nil {
			return nil, nil, err
		}
		ch, err := parseClassHash(rc.ClassHash)
		if err != nil {
			return nil, nil, err
		}
		d.ReplacedClasses[addr] = ch
	}

	return d, declared, nil
}

type rawEntryPoint struct {
	Selector string `json:"selector"`
	Offset string `json:"offset"`
	FunctionIdx uint64 `json:"function_idx"`
}

type rawContractClass struct {
	Program json.RawMessage `json:"program"`
	ABI json.RawMessage `json:"abi"`
	EntryPointsByType map[string][]rawEntryPoint `json:"entry_points_by_type"`
	SierraProgram []string `json:"sierra_program"`
	ContractClassVersion string `json:"contract_class_version"`
}

func mapEntryPoints(raw map[string][]rawEntryPoint) (map[types.EntryPointKind][]types.EntryPoint, error) {
	kindOf := map[string]types.EntryPointKind{
		"EXTERNAL": types.EntryPointExternal,
		"L1_HANDLER": types.EntryPointL1Handler,
		"CONSTRUCTOR": types.EntryPointConstructor,
	}
	out := make(map[types.EntryPointKind][]types.EntryPoint, len(raw))
	for k, list := range raw {
		kind, ok := kindOf[k]
		if !ok {
			continue
		}
		eps := make([]types.EntryPoint, len(list))
		for i, ep := range list {
			sel, err := parseFeltHex(ep.Selector)
			if err != nil {
				return nil, err
			}
			off, _ := new(big.Int).SetString(trimHexPrefix(ep.Offset), 16)
			var offset uint64
			if off != nil {
				offset = off.Uint64()
			}
			var selBytes [32]byte = sel.Bytes()
			eps[i] = types.EntryPoint{Selector: selBytes, Offset: offset, FunctionIdx: ep.FunctionIdx}
		}
		out[kind] = eps
	}
	return out, nil
}

func mapContractClass(body []byte) (*types.ContractClass, error) {
	var raw rawContractClass
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("central: %w: %v", ErrSchemaMismatch, err)
	}
	eps, err := mapEntryPoints(raw.EntryPointsByType)
	if err != nil {
		return nil, err
	}
	if len(raw.SierraProgram) > 0 {
		limbs := make([]uint64, len(raw.SierraProgram))
		for i, s := range raw.SierraProgram {
			f, err := parseFeltHex(s)
			if err != nil {
				return nil, err
			}
			b := f.Bytes()
			limbs[i] = new(big.Int).SetBytes(b[:]).Uint64()
		}
		return &types.ContractClass{Sierra: &types.SierraClass{
			SierraProgram: limbs,
			ABI: raw.ABI,
			EntryPoints: eps,
			ContractClassVersion: raw.ContractClassVersion,
		}}, nil
	}
	return &types.ContractClass{Deprecated: &types.DeprecatedClass{
		Program: raw.Program,
		ABI: raw.ABI,
		EntryPoints: eps,
	}}, nil
}

type rawCasmClass struct {
	Bytecode []string `json:"bytecode"`
	EntryPointsByType map[string][]rawEntryPoint `json:"entry_points_by_type"`
}

func mapCasmClass(body []byte) (*types.CasmClass, error) {
	var raw rawCasmClass
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("central: %w: %v", ErrSchemaMismatch, err)
	}
	eps, err := mapEntryPoints(raw.EntryPointsByType)
	if err != nil {
		return nil, err
	}
	bytecode := make([]uint64, len(raw.Bytecode))
	for i, s := range raw.Bytecode {
		v, ok := new(big.Int).SetString(trimHexPrefix(s), 16)
		if !ok {
			return nil, fmt.Errorf("central: %w: invalid bytecode limb %q", ErrSchemaMismatch, s)
		}
		bytecode[i] = v.Uint64()
	}
	return &types.CasmClass{Bytecode: bytecode, EntryPoints: eps}, nil
}
