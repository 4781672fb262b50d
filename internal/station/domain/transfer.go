package domain

// TransferStatusKind enumerates the terminal-or-not states of a Transfer.
type TransferStatusKind string

const (
	TransferCreated    TransferStatusKind = "created"
	TransferProcessing TransferStatusKind = "processing"
	TransferCompleted  TransferStatusKind = "completed"
	TransferFailed     TransferStatusKind = "failed"
)

// TransferStatus carries the status-specific payload alongside the kind.
type TransferStatus struct {
	Kind      TransferStatusKind `json:"kind"`
	StartedAt int64              `json:"started_at,omitempty"`
	At        int64              `json:"at,omitempty"`
	Hash      string             `json:"hash,omitempty"`
	Signature string             `json:"signature,omitempty"`
	Reason    string             `json:"reason,omitempty"`
}

// IsTerminal reports whether the status is Completed or Failed (§8
// invariant 10: "every Transfer reaches Completed or Failed; Processing is
// not terminal").
func (s TransferStatus) IsTerminal() bool {
	return s.Kind == TransferCompleted || s.Kind == TransferFailed
}

// Transfer is a single native-asset movement executed on behalf of a
// completed Transfer request.
type Transfer struct {
	ID                        ID                `json:"id"`
	InitiatorUser              ID                `json:"initiator_user"`
	FromAccount                ID                `json:"from_account"`
	ToAddress                  string            `json:"to_address"`
	Amount                     string            `json:"amount"`
	Fee                        string            `json:"fee,omitempty"`
	Network                    string            `json:"network,omitempty"`
	Status                     TransferStatus    `json:"status"`
	RequestID                  ID                `json:"request_id"`
	Metadata                   map[string]string `json:"metadata,omitempty"`
	CreatedAt                  int64             `json:"created_at"`
	SubmitAttempts             int               `json:"submit_attempts,omitempty"`
	LastModificationTimestamp  int64             `json:"last_modification_timestamp"`
}
