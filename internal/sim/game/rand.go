package game

// Rand is the simulation's persistent RNG: splitmix64 with an explicit draw
// counter. Seed and draw position are snapshot-able, so two replicas agree on
// the stream exactly when they agree on (seed, draws).
type Rand struct {
	seed  int64
	state uint64
	draws uint64
}

func NewRand(seed int64) *Rand {
	return &Rand{seed: seed, state: uint64(seed)}
}

func (r *Rand) Next() uint64 {
	r.draws++
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}

// Intn returns a value in [0, n). n <= 0 returns 0 without drawing.
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

func (r *Rand) Seed() int64   { return r.seed }
func (r *Rand) Draws() uint64 { return r.draws }
