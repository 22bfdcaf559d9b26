package main

import (
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/app"
)

func main() {
	app.Execute()
}
