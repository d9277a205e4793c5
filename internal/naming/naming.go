// Package naming generates file names for encoded documents.
package naming

import (
	"fmt"
	"sync/atomic"
	"time"
)

const timestampFormat = "20060102150405"

// Namer produces names of the form
// `<prefix>_<transaction type>_<YYYYMMDDHHMMSS>_<sequence>.x12`. The
// sequence is a counter owned by the Namer, starting at 1 and wrapping
// after 9999.
type Namer struct {
	prefix string
	seq    atomic.Uint64
}

func New(prefix string) *Namer {
	if prefix == "" {
		prefix = "x12"
	}
	return &Namer{prefix: prefix}
}

// Next returns the next name for the given transaction type
func (n *Namer) Next(txType string, now time.Time) string {
	seq := (n.seq.Add(1)-1)%9999 + 1
	return fmt.Sprintf(
		"%s_%s_%s_%04d.x12",
		n.prefix, txType, now.Format(timestampFormat), seq,
	)
}
