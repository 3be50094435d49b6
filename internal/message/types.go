package message

import "TypedSign-Chain/pkg/eip712"

// Person is the mail participant: Person(string name,address wallet).
type Person struct {
	Name   string         `json:"name"`
	Wallet eip712.Address `json:"wallet"`
}

func (Person) TypeName() string { return "Person" }

func (p Person) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("name", eip712.String(p.Name))
	v.Visit("wallet", p.Wallet)
}

// Mail is the primary type of the "mail" kind.
type Mail struct {
	From     Person `json:"from"`
	To       Person `json:"to"`
	Contents string `json:"contents"`
}

func (Mail) TypeName() string { return "Mail" }

func (m Mail) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("from", m.From)
	v.Visit("to", m.To)
	v.Visit("contents", eip712.String(m.Contents))
}

// Party is the transfer participant. Its schema name is also "Person" but
// the member order differs from the mail Person: Person(address wallet,string name).
type Party struct {
	Wallet eip712.Address `json:"wallet"`
	Name   string         `json:"name"`
}

func (Party) TypeName() string { return "Person" }

func (p Party) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("wallet", p.Wallet)
	v.Visit("name", eip712.String(p.Name))
}

// Asset is a token amount.
type Asset struct {
	Token  eip712.Address `json:"token"`
	Amount eip712.Uint256 `json:"amount"`
}

func (Asset) TypeName() string { return "Asset" }

func (a Asset) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("token", a.Token)
	v.Visit("amount", a.Amount)
}

// Transaction is the primary type of the "transaction" kind.
type Transaction struct {
	From Party `json:"from"`
	To   Party `json:"to"`
	Tx   Asset `json:"tx"`
}

func (Transaction) TypeName() string { return "Transaction" }

func (t Transaction) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("from", t.From)
	v.Visit("to", t.To)
	v.Visit("tx", t.Tx)
}

// Permit is the ERC-2612 approval message.
type Permit struct {
	Owner    eip712.Address `json:"owner"`
	Spender  eip712.Address `json:"spender"`
	Value    eip712.Uint256 `json:"value"`
	Nonce    eip712.Uint256 `json:"nonce"`
	Deadline eip712.Uint256 `json:"deadline"`
}

func (Permit) TypeName() string { return "Permit" }

func (p Permit) VisitMembers(v eip712.MemberVisitor) {
	v.Visit("owner", p.Owner)
	v.Visit("spender", p.Spender)
	v.Visit("value", p.Value)
	v.Visit("nonce", p.Nonce)
	v.Visit("deadline", p.Deadline)
}
