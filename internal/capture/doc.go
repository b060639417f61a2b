// Package capture provides audio sources that produce mono s16le PCM.
package capture
