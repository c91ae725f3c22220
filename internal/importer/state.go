package importer

import "strconv"

type State int

const (
	StateIdle             State = 0
	StateOpeningFile      State = 1
	StateParsingZip       State = 2
	StateReadingContainer State = 3
	StateReadingOpf       State = 4
	StateOpeningDB        State = 5
	StateDecompressing    State = 6
	StateStoring          State = 7
	StateDone             State = 8
	StateError            State = 99
)

var stateNames = map[State]string{
	StateIdle:             "IDLE",
	StateOpeningFile:      "OPENING_FILE",
	StateParsingZip:       "PARSING_ZIP",
	StateReadingContainer: "READING_CONTAINER",
	StateReadingOpf:       "READING_OPF",
	StateOpeningDB:        "OPENING_DB",
	StateDecompressing:    "DECOMPRESSING",
	StateStoring:          "STORING",
	StateDone:             "DONE",
	StateError:            "ERROR",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "STATE(" + strconv.Itoa(int(s)) + ")"
}

// Active reports whether an import is in flight.
func (s State) Active() bool {
	return s != StateIdle && s != StateDone && s != StateError
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
