package block

import (
	"encoding/json"
	"fmt"

	"raichain/primitives"
)

// wireBlock is the JSON transport shape (spec §6): addresses render as
// checksummed text, hashes/signatures as uppercase hex, and every numeric
// field too wide for a JSON number is a decimal string.
type wireBlock struct {
	Type           string `json:"type"`
	Opcode         string `json:"opcode"`
	Credit         uint16 `json:"credit"`
	Counter        uint32 `json:"counter"`
	Timestamp      uint64 `json:"timestamp,string"`
	Height         uint64 `json:"height,string"`
	Account        string `json:"account"`
	Previous       string `json:"previous"`
	Representative string `json:"representative,omitempty"`
	Balance        string `json:"balance"`
	Link           string `json:"link"`
	Note           *wireNote `json:"note,omitempty"`
	Price          string `json:"price,omitempty"`
	ValidFrom      uint64 `json:"valid_from,omitempty,string"`
	ValidUntil     uint64 `json:"valid_until,omitempty,string"`
	Signature      string `json:"signature"`
}

type wireNote struct {
	Type   uint8  `json:"type"`
	Encode uint8  `json:"encode"`
	Data   string `json:"data"`
}

func kindToWire(k Kind) (string, error) {
	switch k {
	case KindTx:
		return "tx", nil
	case KindRep:
		return "rep", nil
	case KindAd:
		return "ad", nil
	default:
		return "", fmt.Errorf("block: unknown kind %d", k)
	}
}

func kindFromWire(s string) (Kind, error) {
	switch s {
	case "tx":
		return KindTx, nil
	case "rep":
		return KindRep, nil
	case "ad":
		return KindAd, nil
	default:
		return KindUnknown, fmt.Errorf("block: unrecognized type %q", s)
	}
}

func opcodeToWire(op Opcode) (string, error) {
	switch op {
	case OpSend, OpReceive, OpChange, OpCredit, OpReward, OpDestroy, OpBind, OpAdPost, OpAdUpdate:
		return op.String(), nil
	default:
		return "", fmt.Errorf("block: unknown opcode %d", op)
	}
}

func opcodeFromWire(s string) (Opcode, error) {
	for _, op := range []Opcode{OpSend, OpReceive, OpChange, OpCredit, OpReward, OpDestroy, OpBind, OpAdPost, OpAdUpdate} {
		if op.String() == s {
			return op, nil
		}
	}
	return OpUnknown, fmt.Errorf("block: unrecognized opcode %q", s)
}

// MarshalJSON implements the wire encoding described in spec §6.
func (b *Block) MarshalJSON() ([]byte, error) {
	typ, err := kindToWire(b.Kind)
	if err != nil {
		return nil, err
	}
	op, err := opcodeToWire(b.Opcode)
	if err != nil {
		return nil, err
	}
	w := wireBlock{
		Type:      typ,
		Opcode:    op,
		Credit:    b.Credit,
		Counter:   b.Counter,
		Timestamp: b.Timestamp,
		Height:    b.Height,
		Account:   b.Account.Address(),
		Previous:  b.Previous.Hex(),
		Balance:   b.Balance.String(),
		Link:      primitives.Hash(b.Link).Hex(),
		Signature: b.Signature.Hex(),
	}
	if b.Kind.HasRepresentative() {
		w.Representative = b.Representative.Address()
	}
	if b.Kind == KindTx && b.Note != nil {
		w.Note = &wireNote{Type: b.Note.Type, Encode: b.Note.Encode, Data: string(b.Note.Data)}
	}
	if b.Kind == KindAd {
		w.Price = b.Price.String()
		w.ValidFrom = b.ValidFrom
		w.ValidUntil = b.ValidUntil
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the wire encoding, rejecting malformed numeric
// strings, hex fields, and addresses per spec §6 / seed test S6.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("block: %w", err)
	}
	kind, err := kindFromWire(w.Type)
	if err != nil {
		return err
	}
	op, err := opcodeFromWire(w.Opcode)
	if err != nil {
		return err
	}
	account, err := primitives.ParseAddress(w.Account)
	if err != nil {
		return fmt.Errorf("block: account: %w", err)
	}
	previous, err := primitives.HashFromHex(w.Previous)
	if err != nil {
		return fmt.Errorf("block: previous: %w", err)
	}
	balance, err := primitives.ParseAmountDecimal(w.Balance)
	if err != nil {
		return fmt.Errorf("block: balance: %w", err)
	}
	linkHash, err := primitives.HashFromHex(w.Link)
	if err != nil {
		return fmt.Errorf("block: link: %w", err)
	}
	sig, err := primitives.SignatureFromHex(w.Signature)
	if err != nil {
		return fmt.Errorf("block: signature: %w", err)
	}

	out := &Block{
		Kind:      kind,
		Opcode:    op,
		Credit:    w.Credit,
		Counter:   w.Counter,
		Timestamp: w.Timestamp,
		Height:    w.Height,
		Account:   account,
		Previous:  previous,
		Balance:   balance,
		Link:      linkHash,
		Signature: sig,
	}
	if kind.HasRepresentative() {
		if w.Representative == "" {
			return fmt.Errorf("block: missing representative")
		}
		rep, err := primitives.ParseAddress(w.Representative)
		if err != nil {
			return fmt.Errorf("block: representative: %w", err)
		}
		out.Representative = rep
	}
	if kind == KindTx && w.Note != nil {
		out.Note = &Note{Type: w.Note.Type, Encode: w.Note.Encode, Data: []byte(w.Note.Data)}
	}
	if kind == KindAd {
		price, err := primitives.ParseAmountDecimal(w.Price)
		if err != nil {
			return fmt.Errorf("block: price: %w", err)
		}
		out.Price = price
		out.ValidFrom = w.ValidFrom
		out.ValidUntil = w.ValidUntil
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*b = *out
	return nil
}
