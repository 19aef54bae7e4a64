package model

// PasswordStrength is the qualitative strength label of a plaintext password.
type PasswordStrength string

const (
	PasswordStrengthWeak   PasswordStrength = "Weak"
	PasswordStrengthMedium PasswordStrength = "Medium"
	PasswordStrengthStrong PasswordStrength = "Strong"
)
