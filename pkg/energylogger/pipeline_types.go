package energylogger

import (
	"github.com/Cetendo/EnergyLogger/internal/domain"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

// Snapshot is every category captured from one content message, keyed by
// category name.
type Snapshot = domain.Snapshot

// CategoryReading holds one category's fields, or its subcategories for the
// energy monitor.
type CategoryReading = domain.CategoryReading

// FieldMap is an insertion-ordered map of field name to raw value.
type FieldMap = domain.FieldMap

// SaveResult counts what a sink persisted.
type SaveResult = domain.SaveResult

// Row is one stored record returned by Latest.
type Row = domain.Row

// TableStats is a table's row count.
type TableStats = domain.TableStats

// FilterRule selects which fields of a category are kept.
type FilterRule = domain.FilterRule

// ImportValues maps category names to their filter rule.
type ImportValues = domain.ImportValues

// Node is one element of a decoded content tree.
type Node = domain.Node

// Sink consumes snapshots and persists them to any downstream system.
type Sink = ports.Sink

// SecondarySinkError accompanies a committed result when a fan-out sink
// after the primary failed.
type SecondarySinkError = ports.SecondarySinkError

// Store is a queryable Sink with retention.
type Store = ports.Store

// Dialer opens transport sessions to the heat pump.
type Dialer = ports.Dialer

// Conn is one transport session.
type Conn = ports.Conn

// Observability emits logs and metrics about the session and saves.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field
