package reward

import "errors"

// ErrInvalidWeights marks a mystery-box table whose total weight is not positive.
var ErrInvalidWeights = errors.New("invalid weapon table weights")
