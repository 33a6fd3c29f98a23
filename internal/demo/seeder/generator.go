package seeder

import (
	"math/rand"
	"strconv"
)

// Columns is the STUDENT layout the query prompt describes.
var Columns = []string{"NAME", "CLASS", "SECTION", "MARKS"}

var (
	firstNames = []string{"Krish", "Sudhanshu", "Darius", "Vikash", "Dipesh", "Anita", "Meera", "Rahul", "Sara", "Tom"}
	classes    = []string{"Data Science", "DEVOPS", "Machine Learning", "Web Development"}
	sections   = []string{"A", "B", "C"}
)

type Generator struct {
	rnd      *rand.Rand
	sequence int
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// NextStudent returns one row in Columns order. Names repeat with a numeric
// suffix once the name pool is exhausted.
func (g *Generator) NextStudent() []string {
	g.sequence++
	name := firstNames[(g.sequence-1)%len(firstNames)]
	if round := (g.sequence - 1) / len(firstNames); round > 0 {
		name += " " + strconv.Itoa(round+1)
	}
	return []string{
		name,
		pickOne(g.rnd, classes),
		pickOne(g.rnd, sections),
		strconv.Itoa(30 + g.rnd.Intn(71)),
	}
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
