package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/imaging"
	"github.com/liuwenhaha/deep-learning-with-Keras-Radiomics/internal/volume"
)

// TrainOptions are the optimiser settings shared by every MLP of a run.
type TrainOptions struct {
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
}

// DefaultTrainOptions matches the batch size of the original experiments.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{BatchSize: 32, LearningRate: 0.05, Seed: 1}
}

// MLP is a one-hidden-layer perceptron over imaging.Features. Filters sets
// the feature side, NumConv the number of 2x2 poolings, Units the hidden
// width, and Dropout1/Dropout2 the dropout rates on the input and hidden
// layers.
type MLP struct {
	params Params
	opts   TrainOptions
	rng    *rand.Rand

	in     int
	w1     [][]float64 // units x in
	b1     []float64
	w2     [2][]float64 // 2 x units
	b2     [2]float64
	inited bool
}

// NewMLP returns an untrained perceptron.
func NewMLP(p Params, opts TrainOptions) *MLP {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultTrainOptions().BatchSize
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions().LearningRate
	}
	if p.Units <= 0 {
		p.Units = DefaultParams().Units
	}
	if p.Filters <= 0 {
		p.Filters = DefaultParams().Filters
	}
	return &MLP{params: p, opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// MLPFactory returns a Factory building perceptrons with opts.
func MLPFactory(opts TrainOptions) Factory {
	return func(p Params) Classifier { return NewMLP(p, opts) }
}

func (m *MLP) features(x []*volume.Volume) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, s := range x {
		f, err := imaging.Features(s, m.params.Filters, m.params.NumConv)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		if m.inited && len(f) != m.in {
			return nil, fmt.Errorf("example %d has %d features, want %d", i, len(f), m.in)
		}
		out[i] = f
	}
	return out, nil
}

// init draws Glorot-uniform weights.
func (m *MLP) init(in int) {
	units := m.params.Units
	m.in = in
	m.w1 = make([][]float64, units)
	lim1 := math.Sqrt(6 / float64(in+units))
	for u := range m.w1 {
		m.w1[u] = make([]float64, in)
		for i := range m.w1[u] {
			m.w1[u][i] = (2*m.rng.Float64() - 1) * lim1
		}
	}
	m.b1 = make([]float64, units)
	lim2 := math.Sqrt(6 / float64(units+2))
	for c := 0; c < 2; c++ {
		m.w2[c] = make([]float64, units)
		for u := range m.w2[c] {
			m.w2[c][u] = (2*m.rng.Float64() - 1) * lim2
		}
	}
	m.inited = true
}

// Fit trains with minibatch gradient descent on cross-entropy.
func (m *MLP) Fit(ctx context.Context, train, val Data, epochs int) (History, error) {
	var h History
	if train.Len() == 0 {
		return h, ErrNoData
	}
	if len(train.Y) != train.Len() || len(val.Y) != val.Len() {
		return h, fmt.Errorf("model: %d/%d examples with %d/%d labels", train.Len(), val.Len(), len(train.Y), len(val.Y))
	}
	xs, err := m.features(train.X)
	if err != nil {
		return h, err
	}
	if !m.inited {
		m.init(len(xs[0]))
	}
	vs, err := m.features(val.X)
	if err != nil {
		return h, err
	}

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return h, err
		}
		m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		correct := 0
		for start := 0; start < len(order); start += m.opts.BatchSize {
			end := start + m.opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			correct += m.step(xs, train.Y, order[start:end])
		}
		h.Acc = append(h.Acc, float64(correct)/float64(len(xs)))
		h.ValAcc = append(h.ValAcc, m.accuracy(vs, val.Y))
	}
	return h, nil
}

// step applies one minibatch update and returns how many examples it
// classified correctly before the update.
func (m *MLP) step(xs [][]float64, ys [][2]float64, batch []int) int {
	units := m.params.Units
	gw1 := make([][]float64, units)
	for u := range gw1 {
		gw1[u] = make([]float64, m.in)
	}
	gb1 := make([]float64, units)
	var gw2 [2][]float64
	gw2[0], gw2[1] = make([]float64, units), make([]float64, units)
	var gb2 [2]float64

	correct := 0
	for _, idx := range batch {
		x := dropout(m.rng, xs[idx], m.params.Dropout1)
		hidden, pre := m.hidden(x)
		hidden = dropout(m.rng, hidden, m.params.Dropout2)
		p := m.output(hidden)
		if argmax(p) == argmax(ys[idx]) {
			correct++
		}

		var dOut [2]float64
		for c := 0; c < 2; c++ {
			dOut[c] = p[c] - ys[idx][c]
			gb2[c] += dOut[c]
			for u := 0; u < units; u++ {
				gw2[c][u] += dOut[c] * hidden[u]
			}
		}
		for u := 0; u < units; u++ {
			if pre[u] <= 0 || hidden[u] == 0 {
				continue
			}
			// hidden/pre is the dropout scale of a kept unit.
			d := (dOut[0]*m.w2[0][u] + dOut[1]*m.w2[1][u]) * hidden[u] / pre[u]
			gb1[u] += d
			for i, xi := range x {
				gw1[u][i] += d * xi
			}
		}
	}

	lr := m.opts.LearningRate / float64(len(batch))
	for u := 0; u < units; u++ {
		m.b1[u] -= lr * gb1[u]
		for i := range m.w1[u] {
			m.w1[u][i] -= lr * gw1[u][i]
		}
	}
	for c := 0; c < 2; c++ {
		m.b2[c] -= lr * gb2[c]
		for u := 0; u < units; u++ {
			m.w2[c][u] -= lr * gw2[c][u]
		}
	}
	return correct
}

// hidden returns the ReLU activations and their pre-activations.
func (m *MLP) hidden(x []float64) (act, pre []float64) {
	act = make([]float64, len(m.w1))
	pre = make([]float64, len(m.w1))
	for u, w := range m.w1 {
		s := m.b1[u]
		for i, xi := range x {
			s += w[i] * xi
		}
		pre[u] = s
		if s > 0 {
			act[u] = s
		}
	}
	return act, pre
}

func (m *MLP) output(h []float64) [2]float64 {
	var z [2]float64
	for c := 0; c < 2; c++ {
		z[c] = m.b2[c]
		for u, hu := range h {
			z[c] += m.w2[c][u] * hu
		}
	}
	return softmax(z)
}

func (m *MLP) accuracy(xs [][]float64, ys [][2]float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	correct := 0
	for i, x := range xs {
		h, _ := m.hidden(x)
		if argmax(m.output(h)) == argmax(ys[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(xs))
}

// PredictProba runs the trained network without dropout.
func (m *MLP) PredictProba(x []*volume.Volume) ([][2]float64, error) {
	if !m.inited {
		return nil, fmt.Errorf("model: predict before fit")
	}
	xs, err := m.features(x)
	if err != nil {
		return nil, err
	}
	out := make([][2]float64, len(xs))
	for i, f := range xs {
		h, _ := m.hidden(f)
		out[i] = m.output(h)
	}
	return out, nil
}

// dropout zeroes each value with probability rate and scales survivors by
// 1/(1-rate).
func dropout(rng *rand.Rand, v []float64, rate float64) []float64 {
	if rate <= 0 {
		return v
	}
	out := make([]float64, len(v))
	keep := 1 - rate
	for i, x := range v {
		if rng.Float64() < keep {
			out[i] = x / keep
		}
	}
	return out
}

func softmax(z [2]float64) [2]float64 {
	mx := math.Max(z[0], z[1])
	e0, e1 := math.Exp(z[0]-mx), math.Exp(z[1]-mx)
	s := e0 + e1
	return [2]float64{e0 / s, e1 / s}
}

func argmax(p [2]float64) int {
	if p[1] > p[0] {
		return 1
	}
	return 0
}
