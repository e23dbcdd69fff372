package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var quizEventColumns = []string{
	colID, colSequence, colTimestamp, colUnitIndex, colSectionIndex,
	colUnitQuiz, colCorrect, colTotal,
}

func (r *eventRepo) AppendQuizEvent(ctx context.Context, data QuizEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(quizEventTable).
		Columns(quizEventColumns[1:]...).
		Values(
			seqNum,
			utcNow(),
			data.UnitIndex,
			data.SectionIndex,
			data.UnitQuiz,
			data.Correct,
			data.Total,
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save quiz event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryQuizEvents(ctx context.Context, opts QueryOpts) ([]QuizEvent, error) {
	sel := entsql.Dialect(dialect.SQLite).
		Select(quizEventColumns...).
		From(entsql.Table(quizEventTable))
	query, args := applyQueryOpts(sel, opts).Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quiz events: %w", err)
	}
	defer rows.Close()

	var events []QuizEvent
	for rows.Next() {
		var e QuizEvent
		if err := rows.Scan(
			&e.ID,
			&e.Sequence,
			&e.Timestamp,
			&e.UnitIndex,
			&e.SectionIndex,
			&e.UnitQuiz,
			&e.Correct,
			&e.Total,
		); err != nil {
			return nil, fmt.Errorf("scan quiz event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
