package menu

import (
	"strconv"

	"CSU/internal/model"

	runewidth "github.com/mattn/go-runewidth"
)

const summaryLabelWidth = 22

// Summary renders the request as aligned label/value lines. Passwords are
// never shown.
func Summary(req *model.Request) []string {
	var rows [][2]string
	add := func(label, value string) {
		rows = append(rows, [2]string{label, value})
	}

	add("Configuration type", req.Kind.String())
	switch req.Kind {
	case model.KindDatabase:
		add("Database type", req.Backend.String())
		if req.Backend == model.BackendSQLite {
			add("Database file", req.SQLite.DestinationPath)
		} else {
			host := req.Server.Host
			if req.Server.Port > 0 {
				host += ":" + strconv.Itoa(req.Server.Port)
			}
			add("Server", host)
			add("Database", req.Server.Database)
			if req.Server.IntegratedSecurity {
				add("Login", "integrated security")
			} else {
				add("Login", req.Server.AdminUser)
			}
		}
		add("Existing database", yesNo(req.Existing))
		if req.Existing {
			add("Update schema", yesNo(req.Migrate))
		} else {
			add("Initial data set", yesNo(req.RunsInitialData()))
			add("Sample data set", yesNo(req.RunsSampleData()))
		}
		if req.CreateUser {
			add("New user", req.NewUser.Name)
		}
		if req.Backend.Scripted() {
			add("Encrypt connection", yesNo(req.Encrypt))
		}
	case model.KindXML:
		add("XML file", req.XMLFilePath)
	case model.KindWebService:
		add("Web service", req.WebServiceURL)
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, runewidth.FillRight(row[0]+":", summaryLabelWidth)+row[1])
	}
	return lines
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
