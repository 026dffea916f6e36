package models

// Group is a multi-party conversation. Membership is authoritative here;
// the registry's per-connection room set is only session state derived
// from it.
type Group struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LastMessageID string `json:"lastMessageId,omitempty"`
}
