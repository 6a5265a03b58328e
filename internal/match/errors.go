package match

// Kind classifies a failure so transport adapters can map it to their
// native channel without parsing messages.
type Kind uint8

const (
	KindInvalidArgument Kind = iota + 1
	KindNotFound
	KindIllegalState
	KindNotParticipant
	KindSelfJoin
	KindPlayerBusy
	KindDoubleSubmit
	KindDeadlineExceeded
	KindNoMatchAvailable
	KindConflict
	KindTransientBackend
)

// String returns the stable category name shown to callers.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindIllegalState:
		return "illegal_state"
	case KindNotParticipant:
		return "not_participant"
	case KindSelfJoin:
		return "self_join"
	case KindPlayerBusy:
		return "player_busy"
	case KindDoubleSubmit:
		return "double_submit"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	case KindNoMatchAvailable:
		return "no_match_available"
	case KindConflict:
		return "conflict"
	case KindTransientBackend:
		return "transient_backend"
	default:
		return "unknown"
	}
}

// Error is a typed failure crossing the core boundary.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is matches any error of the same kind, so callers can compare
// against the exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// E builds a typed failure.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrIllegalState     = &Error{Kind: KindIllegalState}
	ErrNotParticipant   = &Error{Kind: KindNotParticipant}
	ErrSelfJoin         = &Error{Kind: KindSelfJoin}
	ErrPlayerBusy       = &Error{Kind: KindPlayerBusy}
	ErrDoubleSubmit     = &Error{Kind: KindDoubleSubmit}
	ErrDeadlineExceeded = &Error{Kind: KindDeadlineExceeded}
	ErrNoMatchAvailable = &Error{Kind: KindNoMatchAvailable}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrTransientBackend = &Error{Kind: KindTransientBackend}
)

// KindOf extracts the failure kind, or 0 for untyped errors.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}
