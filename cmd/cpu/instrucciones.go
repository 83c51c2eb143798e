package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// Instrucciones del script:
//
//	GETPID | YIELD | FORK | EXIT | PANIC
//	PAGE_ALLOC <va> | KILL <pid> | SLEEP <ticks>
//	READ <va> | WRITE <va> <byte>
//	TICK | ESTADO | DUMP_MEMORY [pid] | NOOP

var syscallsConArgumento = map[string]bool{
	utils.OperacionPageAlloc: true,
	utils.OperacionKill:      true,
	utils.OperacionSleep:     true,
}

var syscallsSinArgumento = map[string]bool{
	utils.OperacionGetPID: true,
	utils.OperacionYield:  true,
	utils.OperacionFork:   true,
	utils.OperacionExit:   true,
	utils.OperacionPanic:  true,
}

func parsearNumero(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("número inválido %q: %w", s, err)
	}
	return n, nil
}

// decodeAndExecute interpreta una instrucción y la envía al kernel.
// Devuelve true si el kernel ya no atiende más entradas.
func (c *CPU) decodeAndExecute(instruccion string) (bool, error) {
	partes := strings.Fields(instruccion)
	if len(partes) == 0 {
		return false, fmt.Errorf("instrucción vacía")
	}

	operacion := strings.ToUpper(partes[0])
	parametros := partes[1:]

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Ejecutando: %s %s", c.pid, operacion, strings.Join(parametros, " ")))

	var (
		respuesta map[string]interface{}
		err       error
	)

	switch {
	case operacion == "NOOP":
		return false, nil

	case syscallsSinArgumento[operacion]:
		respuesta, err = c.kernel.EnviarHTTPMensaje(utils.MensajeSyscall, operacion, nil)

	case syscallsConArgumento[operacion]:
		if len(parametros) < 1 {
			return false, fmt.Errorf("%s: parámetros insuficientes", operacion)
		}
		arg, errNum := parsearNumero(parametros[0])
		if errNum != nil {
			return false, errNum
		}
		respuesta, err = c.kernel.EnviarHTTPMensaje(utils.MensajeSyscall, operacion, map[string]interface{}{"arg": arg})

	case operacion == "READ":
		if len(parametros) < 1 {
			return false, fmt.Errorf("READ: parámetros insuficientes")
		}
		respuesta, err = c.leerDeMemoria(parametros[0])

	case operacion == "WRITE":
		if len(parametros) < 2 {
			return false, fmt.Errorf("WRITE: parámetros insuficientes")
		}
		respuesta, err = c.escribirEnMemoria(parametros[0], parametros[1])

	case operacion == "TICK":
		respuesta, err = c.kernel.EnviarHTTPMensaje(utils.MensajeInterrupcion, "TIMER", nil)

	case operacion == "ESTADO":
		respuesta, err = c.kernel.EnviarHTTPMensaje(utils.MensajeEstado, "", nil)
		if err == nil {
			utils.InfoLog.Info("Estado del kernel", "ticks", respuesta["ticks"],
				"marcos_libres", respuesta["marcos_libres"], "auditoria", respuesta["auditoria"])
		}
		return false, err

	case operacion == "DUMP_MEMORY":
		datos := map[string]interface{}{}
		if len(parametros) > 0 {
			pid, errNum := parsearNumero(parametros[0])
			if errNum != nil {
				return false, errNum
			}
			datos["pid"] = pid
		}
		respuesta, err = c.kernel.EnviarHTTPMensaje(utils.MensajeMemoryDump, "", datos)
		if err == nil {
			utils.InfoLog.Info("Memory dump", "status", respuesta["status"], "archivo", respuesta["archivo"])
		}
		return false, err

	default:
		return false, fmt.Errorf("instrucción desconocida: %s", operacion)
	}

	if err != nil {
		return false, err
	}
	if retorno, ok := respuesta["retorno"]; ok {
		utils.InfoLog.Info(fmt.Sprintf("## PID: %d - %s retornó %v", c.pid, operacion, retorno))
	}
	return c.procesarRespuesta(respuesta)
}
