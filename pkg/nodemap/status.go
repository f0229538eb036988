package nodemap

// Status is the lifecycle state of one kind of remote operation.
type Status string

// Operation statuses.
const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Operation names a kind of remote operation tracked by the Store.
type Operation string

// Tracked operations. Each has an independent OperationStatus.
const (
	OpFetchAll       Operation = "fetch_all"
	OpFetchOne       Operation = "fetch_one"
	OpCreate         Operation = "create"
	OpSave           Operation = "save"
	OpToggleFavorite Operation = "toggle_favorite"
	OpCreateAgent    Operation = "create_agent"
)

// Operations lists every tracked operation.
var Operations = []Operation{OpFetchAll, OpFetchOne, OpCreate, OpSave, OpToggleFavorite, OpCreateAgent}

// OperationStatus is the state of the latest call of one operation.
// Err is set only when Status is StatusFailed.
type OperationStatus struct {
	Status Status `json:"status"`
	Err    string `json:"error,omitempty"`
}

// Loading reports whether a call is in flight.
func (s OperationStatus) Loading() bool { return s.Status == StatusLoading }

// Failed reports whether the latest call failed.
func (s OperationStatus) Failed() bool { return s.Status == StatusFailed }

type statusBoard map[Operation]OperationStatus

func newStatusBoard() statusBoard {
	b := make(statusBoard, len(Operations))
	for _, op := range Operations {
		b[op] = OperationStatus{Status: StatusIdle}
	}
	return b
}

func (b statusBoard) begin(op Operation) {
	b[op] = OperationStatus{Status: StatusLoading}
}

func (b statusBoard) succeed(op Operation) {
	b[op] = OperationStatus{Status: StatusSucceeded}
}

func (b statusBoard) fail(op Operation, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b[op] = OperationStatus{Status: StatusFailed, Err: msg}
}

func (b statusBoard) idle(op Operation) {
	b[op] = OperationStatus{Status: StatusIdle}
}
