// Package currency содержит преобразование сумм между найрой и кобо.
package currency

import "math"

// ToKobo переводит сумму в основных единицах валюты в минорные (кобо).
// Используется округление, а не усечение: иначе двоичное представление
// значений вида 19.99 систематически занижает сумму на одну единицу.
func ToKobo(major float64) int64 {
	return int64(math.Round(major * 100))
}

// FromKobo переводит сумму из кобо в основные единицы валюты.
func FromKobo(kobo int64) float64 {
	return float64(kobo) / 100
}
