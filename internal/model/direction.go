package model

import "fmt"

// Direction is the side of an address that a crawl or a traversal follows.
type Direction int

const (
	// TransferOut follows edges where the address is the sender.
	TransferOut Direction = iota
	// TransferIn follows edges where the address is the receiver.
	TransferIn
)

// String returns the lowercase name used in logs, table rows and file names.
func (d Direction) String() string {
	switch d {
	case TransferOut:
		return "out"
	case TransferIn:
		return "in"
	default:
		return "unknown"
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == TransferIn {
		return TransferOut
	}
	return TransferIn
}

// ParseDirection converts "out"/"in" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "out", "OUT", "Out":
		return TransferOut, nil
	case "in", "IN", "In":
		return TransferIn, nil
	default:
		return TransferOut, fmt.Errorf("unknown direction %q: want \"out\" or \"in\"", s)
	}
}
