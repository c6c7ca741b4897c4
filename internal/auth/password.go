package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword はメールアドレス未登録時の比較処理に使うパスワード。
const dummyPassword = "recordgate-dummy-password"

// hashPassword はパスワードをbcryptでハッシュ化する。
// 範囲外のコストはbcrypt.DefaultCostに置き換える。
func hashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// checkPassword はハッシュとパスワードが一致するかを返す。
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
