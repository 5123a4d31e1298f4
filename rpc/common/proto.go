package common

import (
	"encoding/json"
	"fmt"

	"github.com/resqcache/resq/lib/cache"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: Register, Get, Has, Cancel, Evict, Status
	Value []byte `json:"value,omitempty"` // Used for: Get (response), Stats (response, JSON encoded)

	// Response only fields
	Ok     bool   `json:"ok,omitempty"`     // Used for: Has, Evict responses
	Status uint8  `json:"status,omitempty"` // Used for: Status response (cache.Status)
	Count  uint64 `json:"count,omitempty"`  // Used for: Len response
	Code   uint8  `json:"code,omitempty"`   // cache.RetCode for typed errors, 0 if no error
	Err    string `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// setError stores an error in a response message, preserving the RetCode of
// typed cache errors so the client can reconstruct them.
func (m *Message) setError(err error) {
	if err == nil {
		return
	}
	m.Err = err.Error()
	if cErr, ok := err.(*cache.Error); ok {
		m.Code = uint8(cErr.Code)
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRegisterRequest creates a new Register request
func NewRegisterRequest(key string) *Message {
	return &Message{
		MsgType: MsgTCacheRegister,
		Key:     key,
	}
}

// NewRegisterResponse creates a new Register response
func NewRegisterResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheRegister,
	}
	msg.setError(err)
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTCacheGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheGet,
		Value:   value,
	}
	msg.setError(err)
	return msg
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{
		MsgType: MsgTCacheHas,
		Key:     key,
	}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool) *Message {
	return &Message{
		MsgType: MsgTCacheHas,
		Ok:      ok,
	}
}

// NewCancelRequest creates a new Cancel request
func NewCancelRequest(key string) *Message {
	return &Message{
		MsgType: MsgTCacheCancel,
		Key:     key,
	}
}

// NewCancelResponse creates a new Cancel response
func NewCancelResponse() *Message {
	return &Message{
		MsgType: MsgTCacheCancel,
	}
}

// NewEvictRequest creates a new Evict request
func NewEvictRequest(key string) *Message {
	return &Message{
		MsgType: MsgTCacheEvict,
		Key:     key,
	}
}

// NewEvictResponse creates a new Evict response
func NewEvictResponse(ok bool) *Message {
	return &Message{
		MsgType: MsgTCacheEvict,
		Ok:      ok,
	}
}

// NewStatusRequest creates a new Status request
func NewStatusRequest(key string) *Message {
	return &Message{
		MsgType: MsgTCacheStatus,
		Key:     key,
	}
}

// NewStatusResponse creates a new Status response
func NewStatusResponse(status cache.Status, ok bool) *Message {
	return &Message{
		MsgType: MsgTCacheStatus,
		Status:  uint8(status),
		Ok:      ok,
	}
}

// NewLenRequest creates a new Len request
func NewLenRequest() *Message {
	return &Message{
		MsgType: MsgTCacheLen,
	}
}

// NewLenResponse creates a new Len response
func NewLenResponse(count int) *Message {
	return &Message{
		MsgType: MsgTCacheLen,
		Count:   uint64(count),
	}
}

// NewClearRequest creates a new Clear request
func NewClearRequest() *Message {
	return &Message{
		MsgType: MsgTCacheClear,
	}
}

// NewClearResponse creates a new Clear response
func NewClearResponse() *Message {
	return &Message{
		MsgType: MsgTCacheClear,
	}
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{
		MsgType: MsgTCacheStats,
	}
}

// NewStatsResponse creates a new Stats response. The stats are JSON encoded
// into the value field.
func NewStatsResponse(stats cache.Stats) *Message {
	msg := &Message{
		MsgType: MsgTCacheStats,
	}
	value, err := json.Marshal(stats)
	if err != nil {
		msg.setError(err)
		return msg
	}
	msg.Value = value
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTCacheRegister:
		return "register"
	case MsgTCacheGet:
		return "get"
	case MsgTCacheHas:
		return "has"
	case MsgTCacheCancel:
		return "cancel"
	case MsgTCacheEvict:
		return "evict"
	case MsgTCacheStatus:
		return "status"
	case MsgTCacheLen:
		return "len"
	case MsgTCacheClear:
		return "clear"
	case MsgTCacheStats:
		return "stats"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "register":
		*t = MsgTCacheRegister
	case "get":
		*t = MsgTCacheGet
	case "has":
		*t = MsgTCacheHas
	case "cancel":
		*t = MsgTCacheCancel
	case "evict":
		*t = MsgTCacheEvict
	case "status":
		*t = MsgTCacheStatus
	case "len":
		*t = MsgTCacheLen
	case "clear":
		*t = MsgTCacheClear
	case "stats":
		*t = MsgTCacheStats
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// ICache operations

	MsgTCacheRegister // Register a key
	MsgTCacheGet      // Get (fetch or serve) the result for a key
	MsgTCacheHas      // Check if a key exists
	MsgTCacheCancel   // Cancel interest in a key
	MsgTCacheEvict    // Evict a terminal entry
	MsgTCacheStatus   // Get the lifecycle status of a key
	MsgTCacheLen      // Number of entries
	MsgTCacheClear    // Remove all entries
	MsgTCacheStats    // Cache statistics
)
