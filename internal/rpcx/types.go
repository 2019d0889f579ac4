// Package rpcx implements the manager and extension RPC surface: two
// services, each exposing a handful of synchronous request/reply calls.
// There is no code generation step available in this environment, so
// the transport is stdlib net/rpc (gob-encoded) over the Unix-socket or
// named-pipe connections internal/endpoint hands out.
package rpcx

// StatusCode is 0 for success, any non-zero for failure. CodeDuplicate
// is the one reserved non-success code callers branch on by name
// (duplicate extension name or duplicate registry item on register).
type StatusCode int

const (
	CodeSuccess   StatusCode = 0
	CodeFailure   StatusCode = 1
	CodeDuplicate StatusCode = 2
)

// Status is the wire status envelope returned by every RPC.
type Status struct {
	Code    StatusCode
	Message string
}

// OK reports whether the status represents success.
func (s Status) OK() bool { return s.Code == CodeSuccess }

func Success() Status { return Status{Code: CodeSuccess} }

func Failure(msg string) Status { return Status{Code: CodeFailure, Message: msg} }

func Duplicate(msg string) Status { return Status{Code: CodeDuplicate, Message: msg} }

// Identity is the wire form of an extension's identity.
type Identity struct {
	UUID          uint64
	Name          string
	Version       string
	SDKVersion    string
	MinSDKVersion string
}

// Option is one entry of the option bundle returned by Manager.Options.
type Option struct {
	Value string
}

// PingArgs/PingReply back both Manager.Ping and Extension.Ping.
type PingArgs struct{}

type PingReply struct {
	Status Status
}

// RegisterExtensionArgs/Reply back Manager.RegisterExtension.
type RegisterExtensionArgs struct {
	Info      Identity
	Broadcast []byte // opaque broadcast blob from the registry collaborator
}

type RegisterExtensionReply struct {
	Status Status
	UUID   uint64
}

// OptionsArgs/Reply back Manager.Options.
type OptionsArgs struct{}

type OptionsReply struct {
	Options map[string]Option
}

// ExtensionsArgs/Reply back Manager.Extensions.
type ExtensionsArgs struct{}

type ExtensionsReply struct {
	Extensions map[uint64]Identity
}

// Row is one result row: column name to string value. Everything
// travels as text rather than a typed value, so numeric and boolean
// columns are stringified on the way out and parsed back on the way in.
type Row map[string]string

// QueryArgs/Reply back Manager.Query.
type QueryArgs struct {
	SQL string
}

type QueryReply struct {
	Status Status
	Rows   []Row
}

// ColumnType is the declared type of a query result column.
type ColumnType string

const (
	ColumnTypeText    ColumnType = "TEXT"
	ColumnTypeInteger ColumnType = "INTEGER"
	ColumnTypeBigInt  ColumnType = "BIGINT"
	ColumnTypeDouble  ColumnType = "DOUBLE"
)

// ColumnDef is one column descriptor. GetQueryColumns returns them as
// an ordered slice rather than a map, since column order matters and Go
// maps don't preserve it.
type ColumnDef struct {
	Name    string
	Type    ColumnType
	Default string
}

type GetQueryColumnsArgs struct {
	SQL string
}

type GetQueryColumnsReply struct {
	Status  Status
	Columns []ColumnDef
}

// CallArgs/Reply back both Manager.Call and Extension.Call.
type CallArgs struct {
	Registry string
	Item     string
	Request  Row
}

type CallReply struct {
	Status Status
	Rows   []Row
}

// ShutdownArgs/Reply back Extension.Shutdown.
type ShutdownArgs struct{}

type ShutdownReply struct{}
