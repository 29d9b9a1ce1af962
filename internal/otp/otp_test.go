package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "russian keyword",
			text: "Ваш код: 483920, не сообщайте его никому",
			want: []string{"483920"},
		},
		{
			name: "english keyword is case insensitive",
			text: "Your verification CODE 9021",
			want: []string{"9021"},
		},
		{
			name: "keyword before six digit before generic",
			text: "Order 12345 shipped. PIN: 7788. Backup 654321",
			want: []string{"7788", "654321", "12345"},
		},
		{
			name: "digits glued to letters are ignored",
			text: "ref AB123456 and id_4455 and 123456789",
			want: nil,
		},
		{
			name: "cyrillic letters are word characters",
			text: "номер5555 и 6666",
			want: []string{"6666"},
		},
		{
			name: "keyword capture stops at eight digits",
			text: "password 1234567890",
			want: []string{"12345678"},
		},
		{
			name: "too short",
			text: "code 123 and 45",
			want: nil,
		},
		{
			name: "non-breaking space after keyword",
			text: "Backup 567890, PIN\u00a01234",
			want: []string{"1234", "567890"},
		},
		{
			name: "duplicates collapse",
			text: "Code: 111222. Repeat: 111222",
			want: []string{"111222"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtractIsStable(t *testing.T) {
	text := "Пароль 4321, code: 998877; 246810 then 13579 and 998877"

	first := Extract(text)
	second := Extract(text)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"4321", "998877", "246810", "13579"}, first)
}
