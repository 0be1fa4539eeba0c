package financial

import (
	"sort"
	"strings"
	"sync"

	"github.com/ryokushen/financial/date"
)

// Index is the in-memory secondary index over the transaction set, keyed by
// account, calendar day, category and normalized merchant. It supports full
// rebuild and incremental maintenance; after any sequence of add/update/
// remove calls it is observationally equivalent to an index rebuilt from
// scratch over the current transaction set.
//
// The index is owned by the Manager; nothing else writes it. It is safe for
// concurrent use, which batch operations rely on.
type Index struct {
	mu         sync.RWMutex
	txs        map[string]Transaction
	byAccount  map[string]map[string]struct{}
	byDate     map[string]map[string]struct{}
	byCategory map[string]map[string]struct{}
	byMerchant map[string]map[string]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	ix := &Index{}
	ix.reset()
	return ix
}

func (ix *Index) reset() {
	ix.txs = make(map[string]Transaction)
	ix.byAccount = make(map[string]map[string]struct{})
	ix.byDate = make(map[string]map[string]struct{})
	ix.byCategory = make(map[string]map[string]struct{})
	ix.byMerchant = make(map[string]map[string]struct{})
}

// Rebuild reconstructs every index map from the full dataset in O(n).
func (ix *Index) Rebuild(txs []Transaction) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.reset()
	for _, t := range txs {
		ix.add(t)
	}
}

// Add indexes a transaction under each of its keys.
func (ix *Index) Add(t Transaction) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.add(t)
}

func (ix *Index) add(t Transaction) {
	ix.txs[t.ID] = t
	for _, bk := range ix.keys(t) {
		set, ok := bk.bucket[bk.key]
		if !ok {
			set = make(map[string]struct{})
			bk.bucket[bk.key] = set
		}
		set[t.ID] = struct{}{}
	}
}

// Remove drops a transaction from every bucket it participates in.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.remove(id)
}

func (ix *Index) remove(id string) {
	t, ok := ix.txs[id]
	if !ok {
		return
	}
	for _, bk := range ix.keys(t) {
		if set, ok := bk.bucket[bk.key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(bk.bucket, bk.key)
			}
		}
	}
	delete(ix.txs, id)
}

// Update reindexes a transaction. It is defined as Remove followed by Add so
// a key change can never leave a duplicated entry behind.
func (ix *Index) Update(id string, t Transaction) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.remove(id)
	ix.add(t)
}

// Len returns the number of indexed transactions.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.txs)
}

// Get returns the indexed transaction with the given id.
func (ix *Index) Get(id string) (Transaction, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.txs[id]
	return t, ok
}

type bucketKey struct {
	bucket map[string]map[string]struct{}
	key    string
}

// keys yields each (bucket, key) pair a transaction participates in. The
// count is a small bounded constant, which keeps incremental removal cheap.
func (ix *Index) keys(t Transaction) []bucketKey {
	bks := []bucketKey{
		{ix.byDate, t.Date.String()},
		{ix.byCategory, strings.ToLower(t.Category)},
	}
	if typ, id, ok := t.AccountRef(); ok {
		bks = append(bks, bucketKey{ix.byAccount, accountKey(typ, id)})
	}
	if merchant := MerchantKey(t.Description); merchant != "" {
		bks = append(bks, bucketKey{ix.byMerchant, merchant})
	}
	return bks
}

func accountKey(typ AccountType, id string) string { return string(typ) + ":" + id }

// ByAccount returns the transactions referencing the given account.
func (ix *Index) ByAccount(typ AccountType, id string) []Transaction {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collect(ix.byAccount[accountKey(typ, id)])
}

// ByDate returns the transactions dated on the given day.
func (ix *Index) ByDate(d date.Date) []Transaction {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collect(ix.byDate[d.String()])
}

// ByCategory returns the transactions in the given category (case-insensitive).
func (ix *Index) ByCategory(category string) []Transaction {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collect(ix.byCategory[strings.ToLower(category)])
}

// ByMerchant returns the transactions whose description normalizes to the
// given merchant key.
func (ix *Index) ByMerchant(merchant string) []Transaction {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collect(ix.byMerchant[merchant])
}

// All returns every indexed transaction sorted by date then id.
func (ix *Index) All() []Transaction {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Transaction, 0, len(ix.txs))
	for _, t := range ix.txs {
		out = append(out, t)
	}
	sortTransactions(out)
	return out
}

// collect copies the bucket's transactions into a deterministic slice.
func (ix *Index) collect(set map[string]struct{}) []Transaction {
	if len(set) == 0 {
		return nil
	}
	out := make([]Transaction, 0, len(set))
	for id := range set {
		out = append(out, ix.txs[id])
	}
	sortTransactions(out)
	return out
}

func sortTransactions(txs []Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// merchantVerbs are leading tokens stripped from descriptions before the
// merchant name: payment processors prepend them and they carry no identity.
var merchantVerbs = map[string]bool{
	"PURCHASE": true,
	"PAYMENT":  true,
	"POS":      true,
	"DEBIT":    true,
	"CARD":     true,
	"AT":       true,
	"TO":       true,
}

// MerchantKey normalizes a transaction description into a merchant token:
// uppercase, leading processor verbs stripped, trailing reference numbers
// stripped, whitespace collapsed. It is deterministic and pure.
func MerchantKey(description string) string {
	tokens := strings.Fields(strings.ToUpper(description))

	for len(tokens) > 0 && merchantVerbs[tokens[0]] {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && isReferenceToken(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// isReferenceToken reports whether a token is a trailing reference number:
// all digits, or a '#'/'*' prefixed code.
func isReferenceToken(tok string) bool {
	if tok == "" {
		return false
	}
	if tok[0] == '#' || tok[0] == '*' {
		return true
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
