package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Modulo representa un módulo genérico del sistema
type Modulo struct {
	Nombre      string
	Server      *HTTPServer
	ConfigPath  string
	HandlerFunc map[int]map[string]HTTPHandlerFunc
}

// NuevoModulo crea una nueva instancia de un módulo
func NuevoModulo(nombre string, configPath string) *Modulo {
	return &Modulo{
		Nombre:      nombre,
		ConfigPath:  configPath,
		HandlerFunc: make(map[int]map[string]HTTPHandlerFunc),
	}
}

// RegistrarHandler registra un handler para un tipo de mensaje y operación específicos
func (m *Modulo) RegistrarHandler(tipo int, operacion string, handler HTTPHandlerFunc) {
	if _, existe := m.HandlerFunc[tipo]; !existe {
		m.HandlerFunc[tipo] = make(map[string]HTTPHandlerFunc)
	}
	m.HandlerFunc[tipo][operacion] = handler
}

// CrearServidor arma el servidor HTTP del módulo con los handlers registrados
func (m *Modulo) CrearServidor(ip string, puerto int) *HTTPServer {
	m.Server = NewHTTPServer(ip, puerto, m.Nombre)

	for tipo, handlersPorOperacion := range m.HandlerFunc {
		tipo, handlersPorOperacion := tipo, handlersPorOperacion
		m.Server.RegisterHTTPHandler(tipo, func(msg *Mensaje) (interface{}, error) {
			operacion := msg.Operacion
			if operacion == "" {
				operacion = "default"
			}

			handler, existe := handlersPorOperacion[operacion]
			if !existe {
				handler, existe = handlersPorOperacion["default"]
				if !existe {
					ErrorLog.Error("No hay handler para operación", "tipo", tipo, "operacion", operacion)
					return nil, fmt.Errorf("no hay handler para operación %s", operacion)
				}
			}

			return handler(msg)
		})
	}

	return m.Server
}

// IniciarServidor crea el servidor y lo pone a escuchar en segundo plano
func (m *Modulo) IniciarServidor(ip string, puerto int) {
	m.CrearServidor(ip, puerto)

	go func() {
		err := m.Server.Start()
		if err != nil {
			ErrorLog.Error("Error al iniciar servidor HTTP", "error", err)
			os.Exit(1)
		}
	}()

	InfoLog.Info("Servidor HTTP iniciado", "módulo", m.Nombre, "dirección", fmt.Sprintf("%s:%d", ip, puerto))
}

// CargarConfiguracion decodifica un archivo JSON al tipo de configuración del módulo
func CargarConfiguracion[T any](ruta string) (*T, error) {
	InfoLog.Info("Cargando configuración", "ruta", ruta)

	absPath, err := filepath.Abs(ruta)
	if err != nil {
		return nil, fmt.Errorf("error obteniendo ruta absoluta de %s: %w", ruta, err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("error abriendo archivo de configuración %s: %w", absPath, err)
	}
	defer file.Close()

	var config T
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error decodificando configuración %s: %w", absPath, err)
	}

	InfoLog.Info("Configuración cargada correctamente", "archivo", absPath)
	return &config, nil
}

// ExtraerEntero lee un número de los datos genéricos de un mensaje.
// JSON decodifica los números como float64; también se aceptan strings ("0x1000", "42").
func ExtraerEntero(datos interface{}, clave string) (uint64, bool) {
	datosMap, ok := datos.(map[string]interface{})
	if !ok {
		return 0, false
	}

	switch v := datosMap[clave].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if n, err := strconv.ParseUint(v, 0, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// ExtraerBool lee un booleano de los datos genéricos de un mensaje
func ExtraerBool(datos interface{}, clave string) bool {
	datosMap, ok := datos.(map[string]interface{})
	if !ok {
		return false
	}
	b, _ := datosMap[clave].(bool)
	return b
}
