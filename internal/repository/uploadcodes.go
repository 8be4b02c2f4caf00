package repository

import "github.com/jaevor/go-nanoid"

// Upload codes delegate a single upload to an unauthenticated actor. A code
// lives in memory only: issued now, gone on first resolve, revoke or expiry.
// Expiry is lazy, there is no background sweeper.

const (
	uploadCodeLength = 10
	// No lookalike characters, codes get typed or read out by humans.
	uploadCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type uploadCode struct {
	uid      string
	issuedAt int64 // unix nanos of the injected clock
}

func newUploadCodeGenerator() func() string {
	gen, err := nanoid.CustomASCII(uploadCodeAlphabet, uploadCodeLength)
	if err != nil {
		// Static alphabet and length, can only fail on a programming error.
		panic(err)
	}
	return gen
}

// IssueUploadCode registers a fresh single-use code for uid. The expiry clock
// starts now.
func (r *Repository) IssueUploadCode(uid string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		code := r.newUploadCode()
		if _, taken := r.uploadCodes[code]; taken {
			continue
		}
		r.uploadCodes[code] = uploadCode{uid: uid, issuedAt: r.clock.Now().UnixNano()}
		return code
	}
}

// ResolveUploadCode consumes a code and returns the uid it was issued for.
// The code is removed no matter what: a successful resolve uses it up, and an
// expired one is evicted on sight.
func (r *Repository) ResolveUploadCode(code string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.uploadCodes[code]
	if !ok {
		return "", false
	}
	delete(r.uploadCodes, code)

	age := r.clock.Now().UnixNano() - entry.issuedAt
	if age > r.codeTTL.Nanoseconds() {
		return "", false
	}
	return entry.uid, true
}

// RevokeUploadCode drops a code without using it. Revoking an absent code is
// a no-op.
func (r *Repository) RevokeUploadCode(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.uploadCodes, code)
}
