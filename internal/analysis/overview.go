// SPDX-License-Identifier: MIT
package analysis

// Peak is the lowest and highest sample of one display column.
type Peak struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Overview reduces samples to one peak pair per column. Column c covers
// samples [floor(c*n/columns), floor((c+1)*n/columns)), the same mapping the
// selection editor uses between pixels and samples. When there are more
// columns than samples, a column may be empty and repeats its neighbour's
// sample instead.
func Overview(samples []float32, columns int) []Peak {
	n := len(samples)
	if n == 0 || columns <= 0 {
		return nil
	}

	out := make([]Peak, columns)
	for c := range out {
		lo := c * n / columns
		hi := max((c+1)*n/columns, lo+1)
		hi = min(hi, n)
		lo = min(lo, n-1)

		p := Peak{Min: samples[lo], Max: samples[lo]}
		for _, v := range samples[lo+1 : hi] {
			p.Min = min(p.Min, v)
			p.Max = max(p.Max, v)
		}
		out[c] = p
	}
	return out
}
