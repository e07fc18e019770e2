package qubo

// ExampleAlpha is the penalty strength of the reference instance.
const ExampleAlpha = 25

// ExampleGraph returns the reference instance: four ordinary vertices, two
// terminals and six weighted edges.
func ExampleGraph() Graph {
	return Graph{
		Vertices: []string{"a", "b", "c", "d", "1", "2"},
		Edges: []Edge{
			{U: "a", V: "b", Weight: 1},
			{U: "b", V: "d", Weight: 2},
			{U: "d", V: "c", Weight: 2},
			{U: "a", V: "c", Weight: 2},
			{U: "a", V: "1", Weight: 5},
			{U: "c", V: "2", Weight: 4},
		},
		Terminals: []string{"1", "2"},
		Alpha:     ExampleAlpha,
	}
}

// ExplicitSteiner returns the hand-written QUBO table of the reference
// instance.  Each pair appears once, in the order it was written down.
func ExplicitSteiner() Table {
	return Table{
		{"xa1", "xa1"}: -25, {"xa2", "xa2"}: -25, {"xb1", "xb1"}: -25, {"xb2", "xb2"}: -25,
		{"xc1", "xc1"}: -25, {"xc2", "xc2"}: -25, {"xd1", "xd1"}: -25, {"xd2", "xd2"}: -25,
		{"x11", "x11"}: -25, {"x22", "x22"}: -25, {"xa1", "xa2"}: 50, {"xb1", "xb2"}: 50,
		{"xc1", "xc2"}: 50, {"xd1", "xd2"}: 50, {"x11", "x12"}: 50, {"x21", "x22"}: 50,
		{"xa1", "xb2"}: 1, {"xa2", "xb1"}: 1, {"xb1", "xd2"}: 2, {"xb2", "xd1"}: 2,
		{"xd1", "xc2"}: 2, {"xd2", "xc1"}: 2, {"xa1", "xc2"}: 2, {"xa2", "xc1"}: 2,
		{"xa1", "x12"}: 5, {"xa2", "x11"}: 5, {"xc1", "x22"}: 4, {"xc2", "x21"}: 4,
		{ConstantVar, ConstantVar}: 150,
	}
}

// ExpectedSteinerAssignment returns the ground state of ExplicitSteiner:
// a and 1 on terminal 1; b, c, d and 2 on terminal 2.
func ExpectedSteinerAssignment() map[string]int {
	return map[string]int{
		"x11": 1, "x12": 0, "x21": 0, "x22": 1,
		"xa1": 1, "xa2": 0, "xb1": 0, "xb2": 1,
		"xc1": 0, "xc2": 1, "xd1": 0, "xd2": 1,
	}
}

// ExpectedSteinerEnergy is the energy of ExpectedSteinerAssignment,
// constant offset included.
const ExpectedSteinerEnergy = 3
