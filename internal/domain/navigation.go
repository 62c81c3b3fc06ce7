package domain

// Navigation - экран, на который витрина предлагает перейти после операции.
type Navigation string

const (
	NavigateNone         Navigation = ""
	NavigateLogin        Navigation = "login"
	NavigatePetDetail    Navigation = "pet-detail"
	NavigateConfirmation Navigation = "confirmation"
)
