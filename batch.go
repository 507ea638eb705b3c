package ppg

import "context"

// BatchKind distinguishes the two statement shapes a batch item can take.
type BatchKind int

const (
	BatchQuery BatchKind = iota
	BatchExec
)

// BatchItem is one statement to run inside a batch's transaction.
type BatchItem struct {
	Kind BatchKind
	SQL  string
	Args []any
}

// BatchResult is one item's outcome, in input order: a BatchQuery item
// populates Values (its rows, already fully collected); a BatchExec item
// populates Affected.
type BatchResult struct {
	Values   [][]any
	Affected int64
}

// Batch runs items inside a transaction on a fresh session, atomically:
// any failure rolls back and surfaces the original error, and results are
// returned as a slice in input order. An empty batch still runs
// BEGIN/COMMIT.
func (c *Client) Batch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	var results []BatchResult
	err := c.Transaction(ctx, func(ctx context.Context, sess *Session) error {
		r, err := runBatchItems(ctx, sess, items)
		results = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// runBatchItems executes items on an already-open session, in order,
// without itself managing the transaction boundary.
func runBatchItems(ctx context.Context, sess *Session, items []BatchItem) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))
	for i, item := range items {
		switch item.Kind {
		case BatchExec:
			result, err := sess.Exec(ctx, item.SQL, item.Args...)
			if err != nil {
				return nil, err
			}
			results[i] = BatchResult{Affected: result.RowsAffected()}

		default:
			rows, err := sess.Query(ctx, item.SQL, item.Args...)
			if err != nil {
				return nil, err
			}
			values, err := rows.Collect(ctx)
			if err != nil {
				return nil, err
			}
			results[i] = BatchResult{Values: values}
		}
	}
	return results, nil
}

// BatchBuilder accumulates items for a fluent-style batch: chain Query and
// Exec calls, then call Run.
type BatchBuilder struct {
	client *Client
	items  []BatchItem
}

// NewBatch starts a fluent batch builder bound to this client.
func (c *Client) NewBatch() *BatchBuilder {
	return &BatchBuilder{client: c}
}

// Query appends a query item to the batch.
func (b *BatchBuilder) Query(sql string, args ...any) *BatchBuilder {
	b.items = append(b.items, BatchItem{Kind: BatchQuery, SQL: sql, Args: args})
	return b
}

// Exec appends an exec item to the batch.
func (b *BatchBuilder) Exec(sql string, args ...any) *BatchBuilder {
	b.items = append(b.items, BatchItem{Kind: BatchExec, SQL: sql, Args: args})
	return b
}

// Run executes the accumulated items as a single atomic batch.
func (b *BatchBuilder) Run(ctx context.Context) ([]BatchResult, error) {
	return b.client.Batch(ctx, b.items)
}
