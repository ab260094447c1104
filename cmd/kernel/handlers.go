package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
	"github.com/montanaflynn/stats"
	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

// handlerHandshake responde la conexión inicial de otro módulo
func (k *Kernel) handlerHandshake(msg *utils.Mensaje) (interface{}, error) {
	utils.InfoLog.Info("Handshake recibido", "origen", msg.Origen)
	return map[string]string{
		"modulo":    "Kernel",
		"algoritmo": k.politica.Nombre(),
	}, nil
}

// handlerOperacion atiende las operaciones del monitor. El semáforo acota
// los volcados concurrentes.
func (k *Kernel) handlerOperacion(msg *utils.Mensaje) (interface{}, error) {
	if !k.semMonitor.TryWait() {
		return nil, fmt.Errorf("monitor ocupado")
	}
	defer k.semMonitor.Signal()

	switch msg.Operacion {
	case "procdump":
		return k.Procesos(), nil

	case "volcado":
		return map[string]string{"volcado": k.VolcarProcesos()}, nil

	case "metricas":
		return k.Metricas(), nil

	case "kill":
		var pedido struct {
			PID int `mapstructure:"pid"`
		}
		decodificador, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &pedido,
		})
		if err != nil {
			return nil, err
		}
		if err := decodificador.Decode(msg.Datos); err != nil {
			return nil, fmt.Errorf("pedido de kill inválido: %v", err)
		}
		resultado := k.MatarExterno(pedido.PID)
		utils.InfoLog.Info("Kill solicitado por monitor", "pid", pedido.PID, "resultado", resultado)
		return map[string]interface{}{"resultado": resultado}, nil
	}

	return nil, fmt.Errorf("operación desconocida: %s", msg.Operacion)
}

// Metricas arma el resumen del estado del kernel: agregados de los
// contadores de tiempo por proceso, memoria y actividad de swap. Igual que
// el volcado de consola, lee la tabla sin lock.
func (k *Kernel) Metricas() map[string]interface{} {
	procesos := k.Procesos()

	var retimes, rutimes, stimes []float64
	for _, p := range procesos {
		retimes = append(retimes, float64(p.ReTime))
		rutimes = append(rutimes, float64(p.RuTime))
		stimes = append(stimes, float64(p.STime))
	}

	resumen := func(muestras []float64) map[string]float64 {
		if len(muestras) == 0 {
			return map[string]float64{"media": 0, "mediana": 0}
		}
		media, _ := stats.Mean(muestras)
		mediana, _ := stats.Median(muestras)
		return map[string]float64{"media": media, "mediana": mediana}
	}

	marcosLibres := k.memoria.MarcosLibres()
	return map[string]interface{}{
		"procesos":        len(procesos),
		"ticks":           k.ticks,
		"retime":          resumen(retimes),
		"rutime":          resumen(rutimes),
		"stime":           resumen(stimes),
		"marcos_libres":   marcosLibres,
		"memoria_libre":   humanize.Bytes(uint64(marcosLibres * k.config.TamPagina)),
		"swap_outs":       k.contSwapOut.Load(),
		"swap_ins":        k.contSwapIn.Load(),
		"archivos_en_uso": k.limiteArchivos.Load(),
		"paginas_en_swap": k.PaginasSwapeadas(),
	}
}
