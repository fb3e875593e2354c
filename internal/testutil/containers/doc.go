// Package containers starts Docker-backed dependencies for integration tests
// using testcontainers-go:
//
//   - MySQL 8.0, for running the repositories against the production dialect
//   - Eclipse Mosquitto, for the MQTT alert publisher
//   - ntfy, as a real delivery target for the shoutrrr notifier
//
// Containers are shared per package through TestMain:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Every file in this package and every test using it carries the
// "integration" build tag:
//
//	go test -tags=integration ./...
package containers
