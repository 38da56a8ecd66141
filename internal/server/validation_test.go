package server

import "testing"

func TestIsVideoURLMatchesHostExactly(t *testing.T) {
	testCases := []struct {
		raw  string
		want bool
	}{
		{raw: "https://www.youtube.com/watch?v=abc", want: true},
		{raw: "https://youtube.com/watch?v=abc", want: true},
		{raw: "http://youtu.be/abc", want: true},
		{raw: "https://VIMEO.com/123", want: true},
		{raw: "https://www.youtube.com:443/watch", want: true},
		{raw: "https://youtube.com.evil.example/x", want: false},
		{raw: "https://evil.example/youtube.com", want: false},
		{raw: "https://notyoutube.com/x", want: false},
		{raw: "https://m.youtube.evil/x", want: false},
		{raw: "ftp://youtube.com/x", want: false},
		{raw: "youtube.com/watch", want: false},
	}
	for _, testCase := range testCases {
		if got := isVideoURL(testCase.raw); got != testCase.want {
			t.Fatalf("isVideoURL(%q) = %v, want %v", testCase.raw, got, testCase.want)
		}
	}
}
