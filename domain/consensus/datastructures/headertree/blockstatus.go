package headertree

import "strings"

// BlockStatus packs the validity level, the data availability and the
// failure state of a header node.
type BlockStatus uint32

// Validity levels. Each level implies all of the lower ones and they occupy
// the bits of StatusValidityMask.
const (
	// StatusValidUnknown is the level of a node nothing is known about.
	StatusValidUnknown BlockStatus = 0

	// StatusValidHeader means the header parsed, its hash satisfies the
	// claimed target and its timestamp is not too far in the future.
	StatusValidHeader BlockStatus = 1

	// StatusValidTree means all previous headers are known and valid, the
	// difficulty matches the retarget rules and the timestamp is after the
	// median time past.
	StatusValidTree BlockStatus = 2

	// StatusValidTransactions means the block data was received and its
	// transactions passed context free validation.
	StatusValidTransactions BlockStatus = 3

	// StatusValidChain means the outputs spent by the block exist.
	StatusValidChain BlockStatus = 4

	// StatusValidScripts means the scripts and signatures of the block
	// are valid.
	StatusValidScripts BlockStatus = 5

	// StatusValidityMask covers all validity levels.
	StatusValidityMask BlockStatus = 7
)

// Availability and failure flags.
const (
	StatusHasBlockData BlockStatus = 8
	StatusHasUndoData  BlockStatus = 16

	// StatusFailed marks a node that failed validation itself.
	StatusFailed BlockStatus = 32

	// StatusFailedChild marks a node descending from a failed node.
	StatusFailedChild BlockStatus = 64

	// StatusFailedMask covers both failure flags.
	StatusFailedMask = StatusFailed | StatusFailedChild

	// StatusOptWitness marks block data that includes witness data.
	StatusOptWitness BlockStatus = 128
)

// Validity returns the validity level stored in s.
func (s BlockStatus) Validity() BlockStatus {
	return s & StatusValidityMask
}

// IsValid returns whether s reaches the given validity level and is not
// failed.
func (s BlockStatus) IsValid(upTo BlockStatus) bool {
	if s.IsFailed() {
		return false
	}
	return s.Validity() >= upTo
}

// IsFailed returns whether any failure flag is set.
func (s BlockStatus) IsFailed() bool {
	return s&StatusFailedMask != 0
}

// HasFlags returns whether all of the given flags are set.
func (s BlockStatus) HasFlags(flags BlockStatus) bool {
	return s&flags == flags
}

var validityNames = [...]string{
	"ValidUnknown", "ValidHeader", "ValidTree", "ValidTransactions", "ValidChain", "ValidScripts",
}

func (s BlockStatus) String() string {
	var parts []string
	if validity := int(s.Validity()); validity < len(validityNames) {
		parts = append(parts, validityNames[validity])
	} else {
		parts = append(parts, "ValidInvalidLevel")
	}
	flagNames := []struct {
		flag BlockStatus
		name string
	}{
		{StatusHasBlockData, "HasBlockData"},
		{StatusHasUndoData, "HasUndoData"},
		{StatusFailed, "Failed"},
		{StatusFailedChild, "FailedChild"},
		{StatusOptWitness, "OptWitness"},
	}
	for _, flagName := range flagNames {
		if s.HasFlags(flagName.flag) {
			parts = append(parts, flagName.name)
		}
	}
	return strings.Join(parts, "|")
}
