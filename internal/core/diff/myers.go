package diff

// edit is a single token-level step of an edit script. a indexes the
// original tokens, b the modified tokens; only the index relevant to kind is
// meaningful.
type edit struct {
	kind Kind
	a    int
	b    int
}

// traceBudget caps the number of V entries the greedy search keeps for
// backtracking (8 bytes each). Past it the script is rebuilt with the
// linear-space variant, so memory stays O(N+M) for large rewrites.
var traceBudget = 1 << 22

// myers computes the shortest edit script between a and b using Myers' O(ND)
// algorithm. It returns nil when the edit distance exceeds maxEdits (negative
// maxEdits disables the limit); callers then fall back to a full replacement.
func myers(a, b []int, maxEdits int) []edit {
	n, m := len(a), len(b)

	if n == 0 || m == 0 {
		return trivialScript(n, m)
	}

	maxD := n + m
	if maxEdits >= 0 && maxEdits < maxD {
		maxD = maxEdits
	}

	// offset leaves one spare slot on each side so every window below is in
	// bounds, including d == n+m.
	offset := n + m + 1
	v := make([]int, 2*offset+2)

	// trace[d] holds V for diagonals [-d-1, d+1] as it was before step d.
	var trace [][]int
	cells := 0
	for d := 0; d <= maxD; d++ {
		cells += 2*d + 3
		if cells > traceBudget {
			return linearScript(a, b, maxEdits)
		}
		trace = append(trace, append([]int(nil), v[offset-d-1:offset+d+2]...))

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k

			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x

			if x >= n && y >= m {
				return backtrack(trace, n, m)
			}
		}
	}

	return nil
}

func trivialScript(n, m int) []edit {
	ops := make([]edit, 0, n+m)
	for i := range n {
		ops = append(ops, edit{kind: Deleted, a: i})
	}
	for i := range m {
		ops = append(ops, edit{kind: Inserted, b: i})
	}
	return ops
}

// backtrack walks the saved V windows from the end point back to the origin
// and returns the edit script in forward order.
func backtrack(trace [][]int, n, m int) []edit {
	x, y := n, m
	ops := make([]edit, 0, n+m)

	for d := len(trace) - 1; d >= 0; d-- {
		w := trace[d]
		at := func(k int) int { return w[k+d+1] }
		k := x - y

		var prevK int
		if k == -d || (k != d && at(k-1) < at(k+1)) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := at(prevK)
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			ops = append(ops, edit{kind: Unchanged, a: x - 1, b: y - 1})
			x--
			y--
		}

		if d > 0 {
			if x == prevX {
				ops = append(ops, edit{kind: Inserted, b: y - 1})
			} else {
				ops = append(ops, edit{kind: Deleted, a: x - 1})
			}
		}

		x, y = prevX, prevY
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}

// snake is a diagonal run from (x, y) to (u, v) on an optimal path whose
// total edit distance is d.
type snake struct {
	d          int
	x, y, u, v int
}

// middleSnake finds the snake where the forward and reverse searches meet.
// It reports false when the distance exceeds maxD (negative means no limit).
// Only legal moves are taken, so every point stays inside the n x m grid;
// -1 marks a diagonal no path of the current length reaches.
func middleSnake(a, b []int, maxD int) (snake, bool) {
	n, m := len(a), len(b)
	delta := n - m
	odd := delta&1 != 0

	limit := (n + m + 1) / 2
	if maxD >= 0 && (maxD+1)/2 < limit {
		limit = (maxD + 1) / 2
	}

	// Diagonals run from -m to n; one spare slot on each side.
	off := m + 1
	vf := make([]int, n+m+3)
	vb := make([]int, n+m+3)
	for i := range vf {
		vf[i], vb[i] = -1, -1
	}

	for d := 0; d <= limit; d++ {
		for k := -d; k <= d; k += 2 {
			x, ok := reach(vf, off, k, d, n, m)
			if !ok {
				continue
			}
			y := x - k
			x0, y0 := x, y
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			vf[off+k] = x

			if odd {
				if xr := vb[off+delta-k]; xr >= 0 && x+xr >= n {
					s := snake{d: 2*d - 1, x: x0, y: y0, u: x, v: y}
					return s, maxD < 0 || s.d <= maxD
				}
			}
		}

		for kr := -d; kr <= d; kr += 2 {
			xr, ok := reach(vb, off, kr, d, n, m)
			if !ok {
				continue
			}
			yr := xr - kr
			xr0, yr0 := xr, yr
			for xr < n && yr < m && a[n-1-xr] == b[m-1-yr] {
				xr++
				yr++
			}
			vb[off+kr] = xr

			if !odd {
				if x := vf[off+delta-kr]; x >= 0 && x+xr >= n {
					s := snake{d: 2 * d, x: n - xr, y: m - yr, u: n - xr0, v: m - yr0}
					return s, maxD < 0 || s.d <= maxD
				}
			}
		}
	}

	return snake{}, false
}

// reach returns the furthest x on diagonal k after d edits, before following
// the diagonal. It reports false when k lies outside the grid or no legal
// move from the previous step lands on it.
func reach(v []int, off, k, d, n, m int) (int, bool) {
	if k < -m || k > n {
		return 0, false
	}
	if d == 0 {
		return 0, true
	}
	best := -1
	// Right move from k-1 (a deletion).
	if p := v[off+k-1]; k-1 >= -m && p >= 0 && p < n {
		best = p + 1
	}
	// Down move from k+1 (an insertion).
	if q := v[off+k+1]; k+1 <= n && q >= 0 && q-(k+1) < m && q >= best {
		best = q
	}
	v[off+k] = -1
	return best, best >= 0
}

// linearScript is the divide-and-conquer form of Myers: it recurses on
// either side of the middle snake and never holds more than O(N+M) state.
func linearScript(a, b []int, maxEdits int) []edit {
	s, ok := middleSnake(a, b, maxEdits)
	if !ok {
		return nil
	}
	ops := make([]edit, 0, len(a)+len(b))
	return appendScript(ops, a, b, 0, 0, s)
}

// appendScript appends the script for a against b, whose tokens start at
// aOff and bOff in the full sequences. top is the middle snake of a and b.
func appendScript(ops []edit, a, b []int, aOff, bOff int, top snake) []edit {
	n, m := len(a), len(b)

	switch {
	case n == 0 || m == 0:
		for _, e := range trivialScript(n, m) {
			ops = append(ops, edit{kind: e.kind, a: e.a + aOff, b: e.b + bOff})
		}
		return ops
	case top.d <= 1:
		return appendNearlyEqual(ops, a, b, aOff, bOff)
	}

	ops = appendSub(ops, a[:top.x], b[:top.y], aOff, bOff)
	for i := range top.u - top.x {
		ops = append(ops, edit{kind: Unchanged, a: aOff + top.x + i, b: bOff + top.y + i})
	}
	return appendSub(ops, a[top.u:], b[top.v:], aOff+top.u, bOff+top.v)
}

func appendSub(ops []edit, a, b []int, aOff, bOff int) []edit {
	if len(a) == 0 || len(b) == 0 {
		return appendScript(ops, a, b, aOff, bOff, snake{})
	}
	s, _ := middleSnake(a, b, -1)
	return appendScript(ops, a, b, aOff, bOff, s)
}

// appendNearlyEqual handles distance 0 or 1: the shorter sequence equals the
// longer one with at most one token removed.
func appendNearlyEqual(ops []edit, a, b []int, aOff, bOff int) []edit {
	i, j := 0, 0
	for i < len(a) && j < len(b) && a[i] == b[j] {
		ops = append(ops, edit{kind: Unchanged, a: aOff + i, b: bOff + j})
		i++
		j++
	}
	switch {
	case len(a) > len(b) && i < len(a):
		ops = append(ops, edit{kind: Deleted, a: aOff + i})
		i++
	case len(b) > len(a) && j < len(b):
		ops = append(ops, edit{kind: Inserted, b: bOff + j})
		j++
	}
	for i < len(a) && j < len(b) {
		ops = append(ops, edit{kind: Unchanged, a: aOff + i, b: bOff + j})
		i++
		j++
	}
	return ops
}
