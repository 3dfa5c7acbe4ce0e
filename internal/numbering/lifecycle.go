package numbering

import "strings"

// Lifecycle keeps a patient's rendered number consistent with the category
// of their status.
type Lifecycle struct {
	pool *Pool
}

func NewLifecycle(pool *Pool) *Lifecycle {
	return &Lifecycle{pool: pool}
}

// StatusToCategory maps a status to its number category. The second return
// value is false when the status carries no number, either because it is
// a waiting/pending status or because it is not recognized at all.
func StatusToCategory(status string) (Category, bool) {
	switch normalize(status) {
	case "validated", "confirmed":
		return Validated, true
	case "cancelled", "canceled", "postponed", "no_show", "noshow", "-":
		return PendingOrCancelled, true
	case "deleted":
		return Deleted, true
	default:
		return "", false
	}
}

// KnownStatus reports whether status is recognized, including statuses that
// map to no number.
func KnownStatus(status string) bool {
	if _, ok := StatusToCategory(status); ok {
		return true
	}
	switch normalize(status) {
	case "", "waiting", "pending":
		return true
	}
	return false
}

func normalize(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == NoNumber {
		return s
	}
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// AssignOrUpdate returns the number a patient holding current should hold
// once their status becomes newStatus. Calling it again with the returned
// number and the same status returns that number unchanged.
func (l *Lifecycle) AssignOrUpdate(current, newStatus string) string {
	cur, hasCurrent := ParseNumber(current)

	target, ok := StatusToCategory(newStatus)
	if !ok {
		if hasCurrent {
			l.pool.Release(cur.Category, cur.Seq)
		}
		return NoNumber
	}

	if hasCurrent && cur.Category == target {
		return cur.String()
	}

	if hasCurrent {
		l.pool.Release(cur.Category, cur.Seq)
	}

	return Number{Category: target, Seq: l.pool.Allocate(target)}.String()
}

// Release returns current to its category's pool, as when a patient
// record is hard-deleted.
func (l *Lifecycle) Release(current string) {
	if n, ok := ParseNumber(current); ok {
		l.pool.Release(n.Category, n.Seq)
	}
}

// Revert undoes an AssignOrUpdate that moved a patient from previous to
// assigned, for when the new number could not be persisted.
func (l *Lifecycle) Revert(previous, assigned string) {
	if previous == assigned {
		return
	}
	if n, ok := ParseNumber(assigned); ok {
		l.pool.Release(n.Category, n.Seq)
	}
	if n, ok := ParseNumber(previous); ok {
		l.pool.Claim(n.Category, n.Seq)
	}
}

// Bootstrap rebuilds the pool from the numbers currently held by patients.
// Values that do not parse are skipped.
func (l *Lifecycle) Bootstrap(numbers []string) {
	byCategory := make(map[Category][]int)
	for _, raw := range numbers {
		n, ok := ParseNumber(raw)
		if !ok {
			continue
		}
		byCategory[n.Category] = append(byCategory[n.Category], n.Seq)
	}
	l.pool.Bootstrap(byCategory)
}
