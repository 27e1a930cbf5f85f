// ABOUTME: EnvironmentVariable with a secure discriminator and a plaintext XOR ciphertext value.
// ABOUTME: Secure variables only ever hold ciphertext; plaintext is sealed on the way in.
package pipeline

// VariableType is the rendered discriminator of an environment variable.
type VariableType string

const (
	VariablePlain  VariableType = "plain"
	VariableSecure VariableType = "secure"
)

// Sealer encrypts plaintext secure values into opaque ciphertext.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// EnvironmentVariable is a pipeline environment variable. Exactly one of the
// plaintext value and the encrypted value is meaningful, chosen by the secure flag.
type EnvironmentVariable struct {
	name           string
	secure         bool
	value          string
	encryptedValue string
}

// NewPlainVariable creates a plaintext variable.
func NewPlainVariable(name, value string) *EnvironmentVariable {
	return &EnvironmentVariable{name: name, value: value}
}

// NewSecureVariable creates a secure variable from an already encrypted value.
func NewSecureVariable(name, encryptedValue string) *EnvironmentVariable {
	return &EnvironmentVariable{name: name, secure: true, encryptedValue: encryptedValue}
}

// Name returns the variable name.
func (v *EnvironmentVariable) Name() string { return v.name }

// IsSecure reports whether the variable holds ciphertext.
func (v *EnvironmentVariable) IsSecure() bool { return v.secure }

// Type returns "plain" or "secure".
func (v *EnvironmentVariable) Type() VariableType {
	if v.secure {
		return VariableSecure
	}
	return VariablePlain
}

// Value returns the plaintext value. It is always empty for secure variables.
func (v *EnvironmentVariable) Value() string {
	if v.secure {
		return ""
	}
	return v.value
}

// EncryptedValue returns the ciphertext. It is always empty for plain variables.
func (v *EnvironmentVariable) EncryptedValue() string {
	if !v.secure {
		return ""
	}
	return v.encryptedValue
}

// SetValue replaces the plaintext of a plain variable.
func (v *EnvironmentVariable) SetValue(value string) error {
	if v.secure {
		return ErrSecureValue
	}
	v.value = value
	return nil
}

// SetSecretValue seals plaintext into a secure variable's ciphertext.
func (v *EnvironmentVariable) SetSecretValue(s Sealer, plaintext string) error {
	if !v.secure {
		return ErrPlainValue
	}
	if s == nil {
		return ErrNoSealer
	}
	sealed, err := s.Seal(plaintext)
	if err != nil {
		return err
	}
	v.encryptedValue = sealed
	return nil
}

// Seal turns a plain variable into a secure one, encrypting its current value.
func (v *EnvironmentVariable) Seal(s Sealer) error {
	if v.secure {
		return nil
	}
	if s == nil {
		return ErrNoSealer
	}
	sealed, err := s.Seal(v.value)
	if err != nil {
		return err
	}
	v.secure = true
	v.encryptedValue = sealed
	v.value = ""
	return nil
}

// Unseal turns a secure variable into a plain one. The ciphertext is dropped
// and the plaintext starts empty; it is never decrypted into the plain field.
func (v *EnvironmentVariable) Unseal() {
	if !v.secure {
		return
	}
	v.secure = false
	v.encryptedValue = ""
	v.value = ""
}

func (v *EnvironmentVariable) setName(n string) { v.name = n }
