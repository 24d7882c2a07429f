// internal/modbus/observer.go
package modbus

// CloseReason labels why a connection ended.
type CloseReason string

const (
	CloseEOF        CloseReason = "eof"
	CloseIdle       CloseReason = "idle_timeout"
	CloseSuperseded CloseReason = "superseded"
	CloseProtocol   CloseReason = "protocol_error"
	CloseIO         CloseReason = "io_error"
	CloseShutdown   CloseReason = "shutdown"
)

// DropReason labels a frame that got no response.
type DropReason string

const (
	DropProtocolID DropReason = "protocol_id"
	DropBadLength  DropReason = "bad_length"
)

// Observer receives server events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	ConnectionOpened(remote string)
	ConnectionClosed(remote string, reason CloseReason)
	RequestHandled(fc FunctionCode, exc Exception)
	FrameDropped(reason DropReason)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) ConnectionOpened(string)                {}
func (NopObserver) ConnectionClosed(string, CloseReason)   {}
func (NopObserver) RequestHandled(FunctionCode, Exception) {}
func (NopObserver) FrameDropped(DropReason)                {}
