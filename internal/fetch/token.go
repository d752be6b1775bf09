// Package fetch orchestrates list and search requests for a view: every
// request carries a token, and only the most recently issued one may change
// view state.
package fetch

import "sync"

// Token identifies one issued request. Tokens increase monotonically.
type Token uint64

// Tracker issues tokens and answers whether a token is still the latest.
type Tracker struct {
	mu     sync.Mutex
	issued Token
}

// Issue returns a new token, making every earlier one stale.
func (t *Tracker) Issue() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return t.issued
}

// Current reports whether tok is the most recently issued token.
func (t *Tracker) Current(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return tok != 0 && tok == t.issued
}

// Latest returns the most recently issued token, or 0.
func (t *Tracker) Latest() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issued
}
