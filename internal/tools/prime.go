package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPrimeRange is returned for inputs below 2.
var ErrPrimeRange = errors.New("number must be >= 2 for prime checking")

// Prime tests a number for primality.
type Prime struct{}

func (Prime) Name() string { return "check_prime" }

func (Prime) Description() string {
	return "Check whether an integer (>= 2) is prime. Returns is_prime and a reason."
}

func (Prime) InputSchema() Schema {
	return Schema{
		Properties: map[string]any{
			"n": map[string]any{
				"type":        "integer",
				"description": "The number to check (must be >= 2)",
			},
		},
		Required: []string{"n"},
	}
}

// PrimeResult is the check_prime output.
type PrimeResult struct {
	Number  int64  `json:"number"`
	IsPrime bool   `json:"is_prime"`
	Reason  string `json:"reason"`
}

func (p Prime) Invoke(_ context.Context, input json.RawMessage) (any, error) {
	var params struct {
		N int64 `json:"n"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return CheckPrime(params.N)
}

// CheckPrime classifies n by trial division over odd divisors up to sqrt(n).
func CheckPrime(n int64) (PrimeResult, error) {
	if n < 2 {
		return PrimeResult{}, ErrPrimeRange
	}
	if n == 2 {
		return PrimeResult{Number: n, IsPrime: true, Reason: "2 is the only even prime number"}, nil
	}
	if n%2 == 0 {
		return PrimeResult{Number: n, Reason: fmt.Sprintf("%d is not prime (divisible by 2)", n)}, nil
	}
	for i := int64(3); i <= n/i; i += 2 {
		if n%i == 0 {
			return PrimeResult{Number: n, Reason: fmt.Sprintf("%d is not prime (divisible by %d)", n, i)}, nil
		}
	}
	return PrimeResult{Number: n, IsPrime: true, Reason: fmt.Sprintf("%d is a prime number", n)}, nil
}
