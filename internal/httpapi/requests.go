package httpapi

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type registerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	EmailRepeat    string `json:"email_repeat"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
	Captcha        string `json:"captcha"`
}

type completionRequest struct {
	UserID         string `json:"user_id"`
	Hash           string `json:"hash"`
	Name           string `json:"name"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

type recoveryRequest struct {
	Identifier string `json:"identifier"`
	Captcha    string `json:"captcha"`
}

type resetRequest struct {
	Name           string `json:"name"`
	Hash           string `json:"hash"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

type passwordChangeRequest struct {
	Current        string `json:"current"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type createUserRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

type suspensionRequest struct {
	Days int `json:"days"`
}

type accountTypeRequest struct {
	AccountType string `json:"account_type"`
}
