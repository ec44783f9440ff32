package wager

import (
	"fmt"
	"math"
	"math/bits"
)

const (
	// MultiplierScale: multiplicadores em milésimos (1000 = 1x).
	MultiplierScale = 1000
	// BasisPoints é o denominador do house edge.
	BasisPoints = 10000
	// MaxMultiplier é o maior multiplicador da tabela (10x).
	MaxMultiplier = 10000

	// MaxStake é o maior stake aceito por um pool: o payout bruto máximo
	// (stake * 10) ainda cabe em um uint64.
	//
	// Limites dos produtos intermediários, calculados em 128 bits:
	//   amount * multiplier <= MaxStake * 10^4 < 2^64 * 10^3  -> quociente /1000 cabe em 64 bits
	//   gross  * house_edge <= (2^64-1) * 10^4 < 2^64 * 10^4  -> quociente /10000 cabe em 64 bits
	MaxStake = math.MaxUint64 / (MaxMultiplier / MultiplierScale)
)

// Bandas de erro (inclusive no limite superior), avaliadas em ordem crescente.
var multiplierBands = []struct {
	maxDiff    uint64
	multiplier uint64
}{
	{100, 10000},
	{500, 5000},
	{1000, 2000},
	{2000, 1000},
}

// Outcome detalha o cálculo de payout de uma aposta.
type Outcome struct {
	Diff       uint64
	Multiplier uint64
	Won        bool
	Gross      uint64
	Fee        uint64
	Payout     uint64
}

// PredictionError retorna |predicted - actual| sem passar por inteiro com sinal.
func PredictionError(predicted, actual uint64) uint64 {
	if predicted > actual {
		return predicted - actual
	}
	return actual - predicted
}

// Multiplier converte o erro de previsão no multiplicador (em milésimos).
// diff > 2000 é a única faixa de perda total.
func Multiplier(diff uint64) uint64 {
	for _, b := range multiplierBands {
		if diff <= b.maxDiff {
			return b.multiplier
		}
	}
	return 0
}

// ComputeOutcome calcula multiplicador, bruto, taxa e payout líquido.
// O único passo saturado é a taxa (payout nunca fica negativo); qualquer
// outro estouro vira ErrArithmeticOverflow.
func ComputeOutcome(amount, predicted, actual uint64, houseEdge uint16) (Outcome, error) {
	if houseEdge > MaxHouseEdge {
		return Outcome{}, invalidConfig("house_edge above 10000 basis points")
	}

	out := Outcome{Diff: PredictionError(predicted, actual)}
	out.Multiplier = Multiplier(out.Diff)
	if out.Multiplier == 0 {
		return out, nil
	}
	out.Won = true

	gross, err := mulDiv(amount, out.Multiplier, MultiplierScale)
	if err != nil {
		return Outcome{}, fmt.Errorf("gross payout: %w", err)
	}
	fee, err := mulDiv(gross, uint64(houseEdge), BasisPoints)
	if err != nil {
		return Outcome{}, fmt.Errorf("house fee: %w", err)
	}
	out.Gross = gross
	out.Fee = fee
	if fee < gross {
		out.Payout = gross - fee
	}
	return out, nil
}

// mulDiv calcula floor(a*b/d) com produto de 128 bits.
func mulDiv(a, b, d uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrArithmeticOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// addChecked soma dois uint64 rejeitando wrap-around.
func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}
