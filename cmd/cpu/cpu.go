package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// CPU ejecuta un script de instrucciones de usuario contra el kernel. Cada
// instrucción es una entrada al kernel (syscall, acceso a memoria, tick) y la
// respuesta dice qué proceso quedó en la CPU.
type CPU struct {
	kernel  *utils.HTTPClient
	pid     int // Proceso en la CPU según la última respuesta; 0 si gira
	retardo time.Duration
}

// NuevaCPU crea una CPU que habla con el kernel a través de cliente
func NuevaCPU(cliente *utils.HTTPClient, retardo time.Duration) *CPU {
	return &CPU{kernel: cliente, retardo: retardo}
}

// PID devuelve el proceso que el kernel dejó en la CPU
func (c *CPU) PID() int {
	return c.pid
}

// leerScript devuelve las instrucciones sin líneas vacías ni comentarios (#)
func leerScript(r io.Reader) ([]string, error) {
	var instrucciones []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		linea := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(linea, '#'); i >= 0 {
			linea = strings.TrimSpace(linea[:i])
		}
		if linea != "" {
			instrucciones = append(instrucciones, linea)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error al leer el script: %w", err)
	}
	return instrucciones, nil
}

// EjecutarArchivo carga un script y lo ejecuta completo
func (c *CPU) EjecutarArchivo(ruta string) error {
	archivo, err := os.Open(ruta)
	if err != nil {
		return fmt.Errorf("error al abrir el script %s: %w", ruta, err)
	}
	defer archivo.Close()

	instrucciones, err := leerScript(archivo)
	if err != nil {
		return err
	}
	return c.Ejecutar(instrucciones)
}

// Ejecutar corre las instrucciones en orden hasta el final o hasta que el
// kernel se detenga.
func (c *CPU) Ejecutar(instrucciones []string) error {
	for i, instruccion := range instrucciones {
		detenido, err := c.decodeAndExecute(instruccion)
		if err != nil {
			return fmt.Errorf("instrucción %d (%s): %w", i+1, instruccion, err)
		}
		if detenido {
			utils.InfoLog.Info("El kernel se detuvo, fin del script", "instruccion", i+1)
			return nil
		}
		if c.retardo > 0 {
			time.Sleep(c.retardo)
		}
	}
	utils.InfoLog.Info("Script completado", "instrucciones", len(instrucciones))
	return nil
}

// procesarRespuesta actualiza el proceso en la CPU; devuelve true si el kernel terminó
func (c *CPU) procesarRespuesta(respuesta map[string]interface{}) (bool, error) {
	switch respuesta["decision"] {
	case "REANUDAR":
		pid, ok := utils.ExtraerEntero(respuesta, "pid")
		if !ok {
			return false, fmt.Errorf("respuesta sin pid: %v", respuesta)
		}
		if int(pid) != c.pid {
			utils.InfoLog.Info(fmt.Sprintf("## Cambio de contexto - PID: %d -> %d", c.pid, pid))
		}
		c.pid = int(pid)
	case "GIRAR":
		c.pid = 0
	case "DETENER":
		return true, nil
	case "PANICO":
		utils.ErrorLog.Error("Kernel en pánico", "mensaje", respuesta["mensaje"])
		return true, nil
	}

	if respuesta["status"] == "ERROR" {
		utils.InfoLog.Warn("El kernel rechazó la instrucción", "mensaje", respuesta["mensaje"])
	}
	return false, nil
}
