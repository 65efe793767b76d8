// Package identity derives the dedup key of a canonical transaction.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
)

// version is mixed into the digest so a future change of the field set cannot
// collide with hashes already stored.
const version = "txid/v1"

// Hash returns the lowercase hex SHA-256 of the labeled, length-prefixed tuple
// (date, merchant, amount, account). Amounts are canonicalised first, so
// "-4.50" and "-4.5" hash the same.
func Hash(date civil.Date, merchant string, amount decimal.Decimal, account string) string {
	var b strings.Builder
	b.WriteString(version)
	writeField(&b, "date", date.String())
	writeField(&b, "merchant", merchant)
	writeField(&b, "amount", amount.String())
	writeField(&b, "account", account)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Of hashes a normalized transaction.
func Of(tx *repository.Transaction) string {
	return Hash(tx.Date, tx.Merchant, tx.Amount, tx.Account)
}

// writeField appends "|label=len:value" so no two tuples share an encoding.
func writeField(b *strings.Builder, label, value string) {
	b.WriteByte('|')
	b.WriteString(label)
	b.WriteByte('=')
	b.WriteString(strconv.Itoa(len(value)))
	b.WriteByte(':')
	b.WriteString(value)
}
