package demography

// Cells is a dense {group × sex × age} table of non-negative people counts.
// The backing slice is shared between copies; use Clone for an independent one.
type Cells struct {
	groups int
	ages   int
	data   []int
}

// NewCells allocates a zeroed tensor.
func NewCells(groups, ages int) Cells {
	return Cells{groups: groups, ages: ages, data: make([]int, groups*2*ages)}
}

// Groups returns the size of the group axis.
func (c Cells) Groups() int { return c.groups }

// Ages returns the size of the age axis.
func (c Cells) Ages() int { return c.ages }

// Index returns the flat position of a cell, matching PrimaryVector.
func (c Cells) Index(g int, s Sex, age int) int {
	return (g*2+int(s))*c.ages + age
}

// At returns one cell.
func (c Cells) At(g int, s Sex, age int) int {
	return c.data[c.Index(g, s, age)]
}

// Set overwrites one cell.
func (c Cells) Set(g int, s Sex, age int, v int) {
	c.data[c.Index(g, s, age)] = v
}

// Add increments one cell by delta.
func (c Cells) Add(g int, s Sex, age int, delta int) {
	c.data[c.Index(g, s, age)] += delta
}

// AddFlat increments a cell by flat index.
func (c Cells) AddFlat(idx, delta int) {
	c.data[idx] += delta
}

// Sum adds every cell of groups [from, to).
func (c Cells) Sum(from, to int) int {
	total := 0
	for _, v := range c.data[from*2*c.ages : to*2*c.ages] {
		total += v
	}
	return total
}

// SexAge adds cells of groups [from, to) for one sex and age.
func (c Cells) SexAge(from, to int, s Sex, age int) int {
	total := 0
	for g := from; g < to; g++ {
		total += c.At(g, s, age)
	}
	return total
}

// Clone returns an independent copy.
func (c Cells) Clone() Cells {
	data := make([]int, len(c.data))
	copy(data, c.data)
	return Cells{groups: c.groups, ages: c.ages, data: data}
}

// Negative returns the first negative cell, if any.
func (c Cells) Negative() (g int, s Sex, age int, ok bool) {
	for idx, v := range c.data {
		if v < 0 {
			age = idx % c.ages
			rest := idx / c.ages
			return rest / 2, Sex(rest % 2), age, true
		}
	}
	return 0, Male, 0, false
}

// Shift ages every cell by one year: age a takes the old age a-1, the oldest
// age is dropped and age 0 is emptied.
func (c Cells) Shift() {
	for g := 0; g < c.groups; g++ {
		for _, s := range Sexes {
			base := c.Index(g, s, 0)
			copy(c.data[base+1:base+c.ages], c.data[base:base+c.ages-1])
			c.data[base] = 0
		}
	}
}
