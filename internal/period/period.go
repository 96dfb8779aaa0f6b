// Package period defines the canonical presentation ordering of settlement
// periods for a local calendar day: periods 47 and 48 belong to the previous
// UTC settlement day, so the local day reads [47, 48, 1, 2, ..., 46].
// The ordering is used only to sequence output; it never affects which keys
// are compared.
package period

// Count is the number of settlement periods in a normal day.
const Count = 48

var order = buildOrder()

var rank = func() map[int]int {
	m := make(map[int]int, len(order))
	for i, sp := range order {
		m[sp] = i
	}
	return m
}()

func buildOrder() []int {
	seq := make([]int, 0, Count)
	seq = append(seq, 47, 48)
	for sp := 1; sp <= 46; sp++ {
		seq = append(seq, sp)
	}
	return seq
}

// Order returns the fixed cyclic sequence [47, 48, 1, ..., 46].
// The caller owns the returned slice.
func Order() []int {
	out := make([]int, len(order))
	copy(out, order)
	return out
}

// Rank returns the position of a settlement period in the canonical order.
// Unknown periods (e.g. 49/50 on a long clock-change day) sort after all
// known ones, keeping the ordering total and deterministic.
func Rank(sp int) int {
	if i, ok := rank[sp]; ok {
		return i
	}
	return len(order)
}
