package mpesa

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "local safaricom", input: "0712345678", want: "254712345678"},
		{name: "local airtel", input: "0112345678", want: "254112345678"},
		{name: "bare seven", input: "712345678", want: "254712345678"},
		{name: "bare one", input: "112345678", want: "254112345678"},
		{name: "international plus", input: "+254712345678", want: "254712345678"},
		{name: "international bare", input: "254712345678", want: "254712345678"},
		{name: "spaces and dashes", input: "+254 712-345-678", want: "254712345678"},
		{name: "too short", input: "07123", wantErr: true},
		{name: "too long", input: "07123456789", wantErr: true},
		{name: "wrong carrier prefix", input: "0212345678", wantErr: true},
		{name: "letters", input: "07123abc78", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize %q: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	if !ValidatePhone("0712345678") {
		t.Fatal("expected valid safaricom number")
	}
	if ValidatePhone("0212345678") {
		t.Fatal("expected landline prefix to be rejected")
	}
}
