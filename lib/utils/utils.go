package utils

import (
	"bytes"
	"math/rand"
)

// ToCmdLine convert strings to [][]byte
func ToCmdLine(cmd ...string) [][]byte {
	args := make([][]byte, len(cmd))
	for i, s := range cmd {
		args[i] = []byte(s)
	}
	return args
}

// ToCmdLine3 convert commandName and []byte-type argument to CmdLine
func ToCmdLine3(commandName string, args ...[]byte) [][]byte {
	result := make([][]byte, len(args)+1)
	result[0] = []byte(commandName)
	copy(result[1:], args)
	return result
}

// ToStrings converts a command line back to strings
func ToStrings(cmdLine [][]byte) []string {
	result := make([]string, len(cmdLine))
	for i, arg := range cmdLine {
		result[i] = string(arg)
	}
	return result
}

// BytesEquals check whether the given bytes is equal, nil is not equal to an empty slice
func BytesEquals(a []byte, b []byte) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return bytes.Equal(a, b)
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// RandString create a random string no longer than n
func RandString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
